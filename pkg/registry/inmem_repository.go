package registry

import (
	"context"
	"sync"

	"github.com/secureauth/secureauth/pkg/digest"
)

// InMemoryRegistryRepository implements RegistryRepository with no
// persistence. Useful for tests and demo runs; all data is lost when the
// process exits.
type InMemoryRegistryRepository struct {
	admins []AdminUserRecord
	users  []User
	mutex  sync.RWMutex
}

// NewInMemoryRegistryRepository creates a new in-memory registry repository
func NewInMemoryRegistryRepository() *InMemoryRegistryRepository {
	return &InMemoryRegistryRepository{
		admins: []AdminUserRecord{},
		users:  []User{},
	}
}

func (r *InMemoryRegistryRepository) LoadAdmins(ctx context.Context) ([]AdminUserRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.admins) == 0 {
		r.admins = []AdminUserRecord{{
			Username:     BootstrapUsername,
			PasswordHash: digest.Sum(BootstrapUsername),
		}}
	}

	out := make([]AdminUserRecord, len(r.admins))
	copy(out, r.admins)
	return out, nil
}

func (r *InMemoryRegistryRepository) CreateAdmin(ctx context.Context, username, plainPassword string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.admins) == 0 {
		r.admins = []AdminUserRecord{{
			Username:     BootstrapUsername,
			PasswordHash: digest.Sum(BootstrapUsername),
		}}
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
	return nil
}

func (r *InMemoryRegistryRepository) UpdateAdminPassword(ctx context.Context, username, newHash string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.admins {
		if r.admins[i].Username == username {
			r.admins[i].PasswordHash = newHash
			return nil
		}
	}
	return nil
}

func (r *InMemoryRegistryRepository) LoadUser(ctx context.Context, username string) (User, bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

func (r *InMemoryRegistryRepository) LoadUsers(ctx context.Context) ([]User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]User, len(r.users))
	copy(out, r.users)
	return out, nil
}

func (r *InMemoryRegistryRepository) SaveUser(ctx context.Context, user User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.users {
		if r.users[i].Username == user.Username {
			r.users[i] = user
			return nil
		}
	}
	r.users = append(r.users, user)
	return nil
}

func (r *InMemoryRegistryRepository) EraseAll(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.admins = []AdminUserRecord{}
	r.users = []User{}
	return nil
}
