package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/secureauth/secureauth/pkg/digest"
)

const (
	adminTableFile   = "admin_users.json"
	profileTableFile = "custom_users.json"
)

// FileRegistryRepository implements RegistryRepository using JSON file
// storage, one file per table.
type FileRegistryRepository struct {
	dataDir string
	admins  []AdminUserRecord
	users   []User
	mutex   sync.RWMutex
}

// NewFileRegistryRepository creates a new file-based registry repository
func NewFileRegistryRepository(dataDir string) (*FileRegistryRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRegistryRepository{
		dataDir: dataDir,
		admins:  []AdminUserRecord{},
		users:   []User{},
	}
	repo.load()

	return repo, nil
}

// LoadAdmins returns the admin table, seeding the bootstrap record if empty
func (r *FileRegistryRepository) LoadAdmins(ctx context.Context) ([]AdminUserRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.admins) == 0 {
		r.admins = []AdminUserRecord{{
			Username:     BootstrapUsername,
			PasswordHash: digest.Sum(BootstrapUsername),
		}}
		if err := r.saveAdmins(); err != nil {
			return nil, fmt.Errorf("failed to persist seeded admin table: %w", err)
		}
		slog.Info("Seeded admin table with bootstrap record", "username", BootstrapUsername)
	}

	out := make([]AdminUserRecord, len(r.admins))
	copy(out, r.admins)
	return out, nil
}

// CreateAdmin appends a new admin record; duplicates are silently ignored.
// An empty table is seeded with the bootstrap record first, so the bootstrap
// account is never missing after a create.
func (r *FileRegistryRepository) CreateAdmin(ctx context.Context, username, plainPassword string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.admins) == 0 {
		r.admins = []AdminUserRecord{{
			Username:     BootstrapUsername,
			PasswordHash: digest.Sum(BootstrapUsername),
		}}
		if err := r.saveAdmins(); err != nil {
			return fmt.Errorf("failed to persist seeded admin table: %w", err)
		}
		slog.Info("Seeded admin table with bootstrap record", "username", BootstrapUsername)
	}

	for _, a := range r.admins {
		if a.Username == username {
			return nil
		}
	}

	r.admins = append(r.admins, AdminUserRecord{
		Username:     username,
		PasswordHash: digest.Sum(plainPassword),
	})
	return r.saveAdmins()
}

// UpdateAdminPassword overwrites the stored hash in place; no-op if absent
func (r *FileRegistryRepository) UpdateAdminPassword(ctx context.Context, username, newHash string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.admins {
		if r.admins[i].Username == username {
			r.admins[i].PasswordHash = newHash
			return r.saveAdmins()
		}
	}
	return nil
}

// LoadUser returns the profile for username, if present
func (r *FileRegistryRepository) LoadUser(ctx context.Context, username string) (User, bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

// LoadUsers returns the whole profile table
func (r *FileRegistryRepository) LoadUsers(ctx context.Context) ([]User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]User, len(r.users))
	copy(out, r.users)
	return out, nil
}

// SaveUser upserts the profile by username and persists the whole table
func (r *FileRegistryRepository) SaveUser(ctx context.Context, user User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.users {
		if r.users[i].Username == user.Username {
			r.users[i] = user
			return r.saveUsers()
		}
	}
	r.users = append(r.users, user)
	return r.saveUsers()
}

// EraseAll destroys both tables
func (r *FileRegistryRepository) EraseAll(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.admins = []AdminUserRecord{}
	r.users = []User{}

	for _, name := range []string{adminTableFile, profileTableFile} {
		if err := os.Remove(filepath.Join(r.dataDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

// load reads both tables from disk. A missing or unparseable file degrades
// to an empty table.
func (r *FileRegistryRepository) load() {
	if err := readTable(filepath.Join(r.dataDir, adminTableFile), &r.admins); err != nil {
		slog.Warn("Treating admin table as empty", "error", err)
		r.admins = []AdminUserRecord{}
	}
	if err := readTable(filepath.Join(r.dataDir, profileTableFile), &r.users); err != nil {
		slog.Warn("Treating profile table as empty", "error", err)
		r.users = []User{}
	}
}

func readTable(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

func (r *FileRegistryRepository) saveAdmins() error {
	return writeTable(r.dataDir, adminTableFile, r.admins)
}

func (r *FileRegistryRepository) saveUsers() error {
	return writeTable(r.dataDir, profileTableFile, r.users)
}

// writeTable writes a whole table to file atomically
func writeTable(dataDir, name string, table interface{}) error {
	jsonData, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(dataDir, name+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filepath.Join(dataDir, name)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
