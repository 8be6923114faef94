package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureauth/secureauth/pkg/config"
	"github.com/secureauth/secureauth/pkg/loginflow"
	"github.com/secureauth/secureauth/pkg/loginflow/api"
	"github.com/secureauth/secureauth/pkg/registry"
	"github.com/secureauth/secureauth/pkg/sessions"
	tg "github.com/secureauth/secureauth/pkg/tokengenerator"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed loading config", "err", err)
		os.Exit(-1)
	}

	repo, err := newRepository(cfg)
	if err != nil {
		slog.Error("Failed creating registry repository", "backend", cfg.StorageConfig.Backend, "err", err)
		os.Exit(-1)
	}

	// Seed the bootstrap account up front so the first login works.
	if _, err := repo.LoadAdmins(context.Background()); err != nil {
		slog.Error("Failed seeding registry", "err", err)
		os.Exit(-1)
	}

	flowService := loginflow.NewFlowService(repo, sessions.NewSessionService(), nil)
	tokenGen := tg.NewJwtTokenGenerator(cfg.JwtConfig.JwtSecret, cfg.JwtConfig.Issuer, cfg.JwtConfig.Audience)
	jwtAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.JwtSecret), nil)

	handle := api.NewHandle(
		api.WithFlowService(flowService),
		api.WithTokenGenerator(tokenGen),
		api.WithJwtAuth(jwtAuth),
		api.WithSessionCookie(tg.NewSessionCookie(cfg.JwtConfig.CookieName, cfg.JwtConfig.CookieHttpOnly, cfg.JwtConfig.CookieSecure)),
		api.WithSessionExpiry(cfg.JwtConfig.SessionExpiry),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		handle.RegisterRoutes(r)
	})

	addr := cfg.ServerConfig.Addr()
	slog.Info("Starting server", "addr", addr, "storage", cfg.StorageConfig.Backend)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}

func newRepository(cfg config.Config) (registry.RegistryRepository, error) {
	switch cfg.StorageConfig.Backend {
	case config.StorageInMem:
		return registry.NewInMemoryRegistryRepository(), nil
	case config.StoragePostgres:
		pool, err := pgxpool.New(context.Background(), cfg.DbConfig.DSN())
		if err != nil {
			return nil, err
		}
		repo := registry.NewPostgresRegistryRepository(pool)
		if err := repo.CreateSchema(context.Background()); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return registry.NewFileRegistryRepository(cfg.StorageConfig.DataDir)
	}
}
