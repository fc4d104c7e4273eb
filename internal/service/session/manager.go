package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/feela-app/feela/backend/internal/model/chat"
)

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
	ErrUsernameMissing = errors.New("username is required")
)

const issuer = "feela"

// Claims are carried by every session token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Manager issues signed session tokens and keeps the set of live sessions
// so that logout can revoke a token before it expires.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]chat.Session
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager signing with secret (HS256).
func NewManager(secret []byte, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]chat.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RandomSecret returns a 32 byte key for processes started without
// SESSION_SECRET. Tokens signed with it do not survive a restart.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return secret, nil
}

// TTL returns the lifetime of issued sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue starts a session for username and returns its signed token.
func (m *Manager) Issue(_ context.Context, username string) (string, chat.Session, error) {
	if username == "" {
		return "", chat.Session{}, ErrUsernameMissing
	}

	now := m.now().UTC()
	sess := chat.Session{
		ID:        uuid.NewString(),
		Username:  username,
		LoggedIn:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Username: username,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", chat.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.pruneLocked(now)
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	return token, sess, nil
}

// Resolve verifies token and returns the live session it refers to.
func (m *Manager) Resolve(_ context.Context, token string) (chat.Session, error) {
	if token == "" {
		return chat.Session{}, ErrInvalidToken
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}); err != nil {
		return chat.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := m.now()
	if !claims.VerifyExpiresAt(now, true) || !claims.VerifyIssuer(issuer, true) {
		m.drop(claims.ID)
		return chat.Session{}, ErrInvalidToken
	}

	m.mu.RLock()
	sess, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	if !ok || sess.Username != claims.Username {
		return chat.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Revoke ends the session with the given id.
func (m *Manager) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Lookup returns the live session with the given id.
func (m *Manager) Lookup(id string) (chat.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok || !m.now().Before(sess.ExpiresAt) {
		return chat.Session{}, false
	}
	return sess, true
}

// Active returns the number of live sessions, dropping expired ones.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.now())
	return len(m.sessions)
}

// pruneLocked removes sessions past their expiry. m.mu must be held.
func (m *Manager) pruneLocked(now time.Time) {
	for id, sess := range m.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) drop(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
