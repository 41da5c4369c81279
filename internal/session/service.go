// Package session manages client sessions: issuance, the one-way bind to
// a credential on successful auth, expiry and the online view.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"hexauth-server/internal/database"
	"hexauth-server/internal/logging"
)

// Store is the persistence surface the manager needs. *database.Repository
// satisfies it.
type Store interface {
	CreateSession(ctx context.Context, appID, sessionID, encryptionKey string, ip *string, expiresAt time.Time) (*database.Session, error)
	GetSession(ctx context.Context, appID, sessionID string) (*database.Session, error)
	ValidateSession(ctx context.Context, appID, sessionID, credential string) (bool, error)
	DeleteSession(ctx context.Context, appID, sessionID string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	CountOnlineSessions(ctx context.Context, appID string) (int, error)
	ListOnlineCredentials(ctx context.Context, appID string) ([]string, error)
}

// Sentinel errors for session lookups
var (
	ErrNotFound     = errors.New("session: not found")
	ErrExpired      = errors.New("session: expired")
	ErrNotValidated = errors.New("session: not validated")
)

// Manager coordinates session state
type Manager struct {
	store  Store
	logger *logging.Logger
}

// NewManager creates a session manager
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		logger: logging.Default().WithComponent("session"),
	}
}

// randomHex returns n random bytes hex encoded
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Open issues a fresh unvalidated session with its own encryption key,
// retrying the 32-hex id on the improbable collision
func (m *Manager) Open(ctx context.Context, appID string, ip *string, ttl time.Duration) (*database.Session, error) {
	encKey, err := randomHex(32)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		sid, err := randomHex(16)
		if err != nil {
			return nil, err
		}
		sess, err := m.store.CreateSession(ctx, appID, sid, encKey, ip, time.Now().Add(ttl))
		if err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				continue
			}
			return nil, err
		}
		return sess, nil
	}
	return nil, errors.New("session: id space collision")
}

// Get returns a live session, expiring stale rows on touch
func (m *Manager) Get(ctx context.Context, appID, sessionID string) (*database.Session, error) {
	sess, err := m.store.GetSession(ctx, appID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.Expired(time.Now()) {
		if err := m.store.DeleteSession(ctx, appID, sessionID); err != nil {
			m.logger.Warn("failed to delete expired session", "session_id", sessionID, "error", err.Error())
		}
		return nil, ErrExpired
	}
	return sess, nil
}

// GetValidated returns a live session that has already bound a credential
func (m *Manager) GetValidated(ctx context.Context, appID, sessionID string) (*database.Session, error) {
	sess, err := m.Get(ctx, appID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsValidated {
		return nil, ErrNotValidated
	}
	return sess, nil
}

// Validate binds a credential to the session. The bind happens at most
// once per session; later attempts fail.
func (m *Manager) Validate(ctx context.Context, appID, sessionID, credential string) error {
	ok, err := m.store.ValidateSession(ctx, appID, sessionID, credential)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Close deletes a session
func (m *Manager) Close(ctx context.Context, appID, sessionID string) error {
	return m.store.DeleteSession(ctx, appID, sessionID)
}

// CountOnline returns live validated sessions for an application
func (m *Manager) CountOnline(ctx context.Context, appID string) (int, error) {
	return m.store.CountOnlineSessions(ctx, appID)
}

// OnlineCredentials returns who is currently online for an application
func (m *Manager) OnlineCredentials(ctx context.Context, appID string) ([]string, error) {
	return m.store.ListOnlineCredentials(ctx, appID)
}

// StartSweeper deletes expired sessions on the interval until ctx ends
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.store.DeleteExpiredSessions(ctx)
				if err != nil {
					m.logger.Warn("session sweep failed", "error", err.Error())
					continue
				}
				if n > 0 {
					m.logger.Debug("swept expired sessions", "count", n)
				}
			}
		}
	}()
}
