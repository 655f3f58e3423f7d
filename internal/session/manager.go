package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Manager holds the current session. It implements persistence.Authenticator.
type Manager struct {
	secret []byte
	store  TokenStore
	now    func() time.Time

	mu     sync.RWMutex
	claims *Claims
}

// NewManager returns a signed-out Manager. store may be nil, in which case
// the session only lasts for the process.
func NewManager(secret []byte, store TokenStore, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{secret: secret, store: store, now: now}
}

// SignIn verifies token and makes it the current session.
func (m *Manager) SignIn(ctx context.Context, token string) (Claims, error) {
	if len(m.secret) == 0 {
		return Claims{}, ErrNoSecret
	}
	claims, err := ParseToken(m.secret, token, m.now())
	if err != nil {
		return Claims{}, err
	}
	if m.store != nil {
		if err := m.store.SaveToken(ctx, token, claims.ExpiresAt.Time); err != nil {
			return Claims{}, fmt.Errorf("persist session: %w", err)
		}
	}

	m.mu.Lock()
	m.claims = &claims
	m.mu.Unlock()
	return claims, nil
}

// SignOut clears the session in memory and in the store.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.claims = nil
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.DeleteToken(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Current returns the active claims. Expired sessions count as signed out.
func (m *Manager) Current() (Claims, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claims == nil || m.claims.expired(m.now()) {
		return Claims{}, false
	}
	return *m.claims, true
}

func (m *Manager) Subject() (string, bool) {
	claims, ok := m.Current()
	if !ok {
		return "", false
	}
	return claims.Subject, true
}

// Restore loads a persisted token. A missing, expired or invalid token leaves
// the manager signed out; only store failures are returned.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil || len(m.secret) == 0 {
		return nil
	}
	token, err := m.store.LoadToken(ctx)
	if errors.Is(err, ErrNoToken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	claims, err := ParseToken(m.secret, token, m.now())
	if err != nil {
		if delErr := m.store.DeleteToken(ctx); delErr != nil {
			return fmt.Errorf("discard stale session: %w", delErr)
		}
		return nil
	}

	m.mu.Lock()
	m.claims = &claims
	m.mu.Unlock()
	return nil
}
