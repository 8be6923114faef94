package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/secureauth/secureauth/pkg/digest"
)

// DBTX is an interface that allows us to use either a database connection or
// a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRegistryRepository implements RegistryRepository using PostgreSQL
type PostgresRegistryRepository struct {
	db DBTX
}

// NewPostgresRegistryRepository creates a new PostgreSQL registry repository
func NewPostgresRegistryRepository(db DBTX) *PostgresRegistryRepository {
	return &PostgresRegistryRepository{db: db}
}

// CreateSchema creates the two registry tables if they do not exist
func (r *PostgresRegistryRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admin_user (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create admin_user table: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_profile (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			totp_secret TEXT NOT NULL DEFAULT '',
			totp_enabled TEXT NOT NULL DEFAULT 'N',
			registered_device_id TEXT NOT NULL DEFAULT '',
			password_reset_required BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_profile table: %w", err)
	}

	return nil
}

// LoadAdmins returns the admin table, seeding the bootstrap record if empty
func (r *PostgresRegistryRepository) LoadAdmins(ctx context.Context) ([]AdminUserRecord, error) {
	admins, err := r.queryAdmins(ctx)
	if err != nil {
		return nil, err
	}

	if len(admins) == 0 {
		// ON CONFLICT guards the race between two concurrent first reads
		_, err := r.db.Exec(ctx, `
			INSERT INTO admin_user (username, password_hash)
			VALUES ($1, $2)
			ON CONFLICT (username) DO NOTHING
		`, BootstrapUsername, digest.Sum(BootstrapUsername))
		if err != nil {
			return nil, fmt.Errorf("failed to seed admin table: %w", err)
		}
		slog.Info("Seeded admin table with bootstrap record", "username", BootstrapUsername)
		return r.queryAdmins(ctx)
	}

	return admins, nil
}

func (r *PostgresRegistryRepository) queryAdmins(ctx context.Context) ([]AdminUserRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT username, password_hash FROM admin_user ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin table: %w", err)
	}
	defer rows.Close()

	admins := []AdminUserRecord{}
	for rows.Next() {
		var a AdminUserRecord
		if err := rows.Scan(&a.Username, &a.PasswordHash); err != nil {
			return nil, fmt.Errorf("failed to scan admin record: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// CreateAdmin appends a new admin record; duplicates are silently ignored.
// The read beforehand seeds the bootstrap record into an empty table, so
// the bootstrap account is never missing after a create.
func (r *PostgresRegistryRepository) CreateAdmin(ctx context.Context, username, plainPassword string) error {
	if _, err := r.LoadAdmins(ctx); err != nil {
		return fmt.Errorf("failed to seed admin table: %w", err)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_user (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
	`, username, digest.Sum(plainPassword))
	if err != nil {
		return fmt.Errorf("failed to create admin record: %w", err)
	}
	return nil
}

// UpdateAdminPassword overwrites the stored hash; no-op if absent
func (r *PostgresRegistryRepository) UpdateAdminPassword(ctx context.Context, username, newHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE admin_user SET password_hash = $2 WHERE username = $1
	`, username, newHash)
	if err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	return nil
}

// LoadUser returns the profile for username, if present
func (r *PostgresRegistryRepository) LoadUser(ctx context.Context, username string) (User, bool, error) {
	row := r.db.QueryRow(ctx, `
		SELECT username, password_hash, totp_secret, totp_enabled,
		       registered_device_id, password_reset_required, created_at
		FROM user_profile
		WHERE username = $1
	`, username)

	var u User
	err := row.Scan(&u.Username, &u.PasswordHash, &u.TotpSecret, &u.TotpEnabled,
		&u.RegisteredDeviceID, &u.PasswordResetRequired, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("failed to load profile: %w", err)
	}
	return u, true, nil
}

// LoadUsers returns the whole profile table
func (r *PostgresRegistryRepository) LoadUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT username, password_hash, totp_secret, totp_enabled,
		       registered_device_id, password_reset_required, created_at
		FROM user_profile
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile table: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.TotpSecret, &u.TotpEnabled,
			&u.RegisteredDeviceID, &u.PasswordResetRequired, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SaveUser upserts the profile by username
func (r *PostgresRegistryRepository) SaveUser(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_profile (
			username, password_hash, totp_secret, totp_enabled,
			registered_device_id, password_reset_required, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			totp_secret = EXCLUDED.totp_secret,
			totp_enabled = EXCLUDED.totp_enabled,
			registered_device_id = EXCLUDED.registered_device_id,
			password_reset_required = EXCLUDED.password_reset_required
	`, user.Username, user.PasswordHash, user.TotpSecret, user.TotpEnabled,
		user.RegisteredDeviceID, user.PasswordResetRequired, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// EraseAll destroys both tables
func (r *PostgresRegistryRepository) EraseAll(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE admin_user`); err != nil {
		return fmt.Errorf("failed to erase admin table: %w", err)
	}
	if _, err := r.db.Exec(ctx, `TRUNCATE user_profile`); err != nil {
		return fmt.Errorf("failed to erase profile table: %w", err)
	}
	return nil
}
