package memory

import (
	"context"
	"sync"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
)

type MemoryUserRepository struct {
	users map[domain.IdentityID]*domain.User
	mu    sync.RWMutex
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[domain.IdentityID]*domain.User),
	}
}

var _ ports.UserRepository = (*MemoryUserRepository)(nil)

func (r *MemoryUserRepository) GetByID(ctx context.Context, id domain.IdentityID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	return user, nil
}

// Put seeds a user. Users are owned by an external account system; the
// in-memory variant exists for development and tests.
func (r *MemoryUserRepository) Put(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}
