package auth

import (
	"context"
	"errors"
	"sync"
)

var _ CredentialStore = (*MemoryUserStore)(nil)

// MemoryUserStore is an in-memory CredentialStore used in tests and local runs
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]User
	// Err, when set, is returned by every lookup
	Err error
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]User),
	}
}

func (s *MemoryUserStore) Add(_ context.Context, user User) error {
	if user.Username == "" || user.PasswordHash == "" {
		return errors.New("username or password hash empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return ErrUserExists
	}
	s.users[user.Username] = user
	return nil
}

func (s *MemoryUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
