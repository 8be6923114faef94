// Package registry persists the two record tables behind the credential
// flow: the admin master credential list and the per-user MFA profiles. The
// tables are independent ordered collections keyed by username. Backends are
// interchangeable: JSON files, in-memory, or PostgreSQL.
package registry

import "context"

// RegistryRepository defines the persistence operations over the two tables.
//
// Malformed persisted data is treated as an empty table rather than an
// error: this is account bootstrap data and availability wins over
// strictness.
type RegistryRepository interface {
	// LoadAdmins returns the admin table. An empty (or absent) table is
	// seeded with the bootstrap record first; the seed is idempotent and
	// never runs once at least one record exists.
	LoadAdmins(ctx context.Context) ([]AdminUserRecord, error)

	// CreateAdmin hashes plainPassword and appends a new admin record. A
	// duplicate username is silently ignored, not an error. Plaintext is
	// never persisted.
	CreateAdmin(ctx context.Context, username, plainPassword string) error

	// UpdateAdminPassword overwrites the stored hash for username in place.
	// No-op if the username is absent.
	UpdateAdminPassword(ctx context.Context, username, newHash string) error

	// LoadUser returns the profile for username. The bool reports whether a
	// profile exists; absence is not an error.
	LoadUser(ctx context.Context, username string) (User, bool, error)

	// LoadUsers returns the whole profile table.
	LoadUsers(ctx context.Context) ([]User, error)

	// SaveUser upserts the profile by username.
	SaveUser(ctx context.Context, user User) error

	// EraseAll destroys both tables unconditionally. Interactive
	// confirmation is the caller's responsibility.
	EraseAll(ctx context.Context) error
}
