package account

import (
	"context"
	"errors"
	"sync"

	"github.com/feela-app/feela/backend/internal/model/user"
)

var (
	ErrInvalidInput       = errors.New("username and password are required")
	ErrAlreadyExists      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service is the in-memory credential store. Passwords are compared as
// plain strings; there is no hashing, salting or lockout.
type Service struct {
	mu    sync.RWMutex
	users map[string]user.User
}

// NewService returns an empty credential store.
func NewService() *Service {
	return &Service{users: make(map[string]user.User)}
}

// Register creates an account.
func (s *Service) Register(_ context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return ErrAlreadyExists
	}
	s.users[username] = user.User{Username: username, Password: password}
	return nil
}

// Authenticate checks the credentials. Unknown users and wrong passwords
// yield the same error.
func (s *Service) Authenticate(_ context.Context, username, password string) error {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()

	if !ok || u.Password != password {
		return ErrInvalidCredentials
	}
	return nil
}

// Exists reports whether username has signed up.
func (s *Service) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok
}
