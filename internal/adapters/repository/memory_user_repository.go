package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ ports.UserRepository = (*MemoryUserRepository)(nil)

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "user", ID: username}
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "user", ID: id}
	}
	return &u, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return nil, domain.ErrUserExists
		}
	}
	r.users[user.ID] = user
	return &user, nil
}
