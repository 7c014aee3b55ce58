package repository

import (
	"context"
	"sync"

	"sentinal-assist/internal/domain/user"
	sentinal_errors "sentinal-assist/pkg/errors"
)

// MemoryUserRepository keeps users in process memory. Used when no database
// is configured and by tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]user.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]user.User)}
}

func (r *MemoryUserRepository) GetUserByIdentifier(_ context.Context, identifier string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[identifier]
	if !ok {
		return user.User{}, sentinal_errors.ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.Identifier]; ok {
		return sentinal_errors.ErrAlreadyExists
	}
	r.users[u.Identifier] = *u
	return nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
