package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// Session is an authenticated login.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionManager keeps bearer-token sessions in memory. A session expires
// when it has not been used for ttl.
type SessionManager struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(ttl time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for user and returns its token.
func (m *SessionManager) Create(user *User) (*Session, error) {
	tok, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{
		Token:     tok,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		LastSeen:  now,
	}
	m.sessions[tok] = s

	m.logger.Debug("session created", "user", user.Username, "token", tokenPrefix(tok))
	return s, nil
}

// Validate returns a copy of the session for token and refreshes its
// activity time. Expired sessions are removed.
func (m *SessionManager) Validate(token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[token]
	if !exists {
		return Session{}, ErrSessionNotFound
	}

	now := m.now()
	if now.Sub(s.LastSeen) > m.ttl {
		delete(m.sessions, token)
		return Session{}, ErrSessionNotFound
	}

	s.LastSeen = now
	return *s, nil
}

// Revoke ends a session. Unknown tokens are ignored.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// Len returns the number of tracked sessions, expired ones included until
// the next sweep.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for tok, s := range m.sessions {
		if now.Sub(s.LastSeen) > m.ttl {
			delete(m.sessions, tok)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("session sweep interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
