package auth

import (
	"context"
	"errors"
	"sync"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	Put(ctx context.Context, user User) error
}

type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]User)}
}

func (s *InMemoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *InMemoryUserStore) Put(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = NormalizeEmail(user.Email)
	s.users[user.Email] = user
	return nil
}
