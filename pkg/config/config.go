// Package config holds the environment-driven server configuration.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage backends for the registry.
const (
	StorageFile     = "file"
	StorageInMem    = "inmem"
	StoragePostgres = "postgres"
)

type ServerConfig struct {
	Host string `env:"SECUREAUTH_HOST" env-default:"localhost"`
	Port uint16 `env:"SECUREAUTH_PORT" env-default:"4000"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Backend string `env:"SECUREAUTH_STORAGE" env-default:"file"`
	DataDir string `env:"SECUREAUTH_DATA_DIR" env-default:"./data"`
}

type DbConfig struct {
	Host     string `env:"SECUREAUTH_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"SECUREAUTH_PG_PORT" env-default:"5432"`
	Database string `env:"SECUREAUTH_PG_DATABASE" env-default:"secureauth_db"`
	User     string `env:"SECUREAUTH_PG_USER" env-default:"secureauth"`
	Password string `env:"SECUREAUTH_PG_PASSWORD" env-default:"pwd"`
}

// DSN builds a pgx connection string from the parts.
func (c DbConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type JwtConfig struct {
	JwtSecret      string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer         string        `env:"JWT_ISSUER" env-default:"secureauth"`
	Audience       string        `env:"JWT_AUDIENCE" env-default:"secureauth-web"`
	SessionExpiry  time.Duration `env:"SESSION_EXPIRY" env-default:"30m"`
	CookieName     string        `env:"SESSION_COOKIE_NAME" env-default:"secureauth_session"`
	CookieHttpOnly bool          `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure   bool          `env:"COOKIE_SECURE" env-default:"false"`
}

type Config struct {
	ServerConfig  ServerConfig
	StorageConfig StorageConfig
	DbConfig      DbConfig
	JwtConfig     JwtConfig
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	switch config.StorageConfig.Backend {
	case StorageFile, StorageInMem, StoragePostgres:
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", config.StorageConfig.Backend)
	}
	return config, nil
}
