package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, session_id, application_id, credential, is_validated,
	COALESCE(encryption_key, ''), ip_address, expires_at, created_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.SessionID, &s.ApplicationID, &s.Credential, &s.IsValidated,
		&s.EncryptionKey, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

// CreateSession opens an unvalidated session for an application
func (r *Repository) CreateSession(ctx context.Context, appID, sessionID, encryptionKey string, ip *string, expiresAt time.Time) (*Session, error) {
	query := `
		INSERT INTO application_sessions (session_id, application_id, encryption_key, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns

	sess, err := scanSession(r.db.Pool.QueryRow(ctx, query, sessionID, appID, encryptionKey, ip, expiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return sess, nil
}

// GetSession returns an application's session by public id, or nil
func (r *Repository) GetSession(ctx context.Context, appID, sessionID string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM application_sessions WHERE application_id = $1 AND session_id = $2`
	return scanSession(r.db.Pool.QueryRow(ctx, query, appID, sessionID))
}

// ValidateSession binds a credential to a session at most once. A
// validated session can never switch identity, but re-binding the same
// credential is an idempotent no-op rather than a failure.
func (r *Repository) ValidateSession(ctx context.Context, appID, sessionID, credential string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE application_sessions
		SET is_validated = TRUE, credential = $3
		WHERE application_id = $1 AND session_id = $2
		  AND (is_validated = FALSE OR credential = $3)
		  AND expires_at > NOW()`,
		appID, sessionID, credential,
	)
	if err != nil {
		return false, fmt.Errorf("failed to validate session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteSession removes a session
func (r *Repository) DeleteSession(ctx context.Context, appID, sessionID string) error {
	if _, err := r.db.Pool.Exec(ctx,
		`DELETE FROM application_sessions WHERE application_id = $1 AND session_id = $2`,
		appID, sessionID,
	); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps sessions past their TTL, returning the count
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM application_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountOnlineSessions returns live validated sessions for an application
func (r *Repository) CountOnlineSessions(ctx context.Context, appID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM application_sessions
		WHERE application_id = $1 AND is_validated = TRUE AND expires_at > NOW()`,
		appID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count online sessions: %w", err)
	}
	return n, nil
}

// ListOnlineCredentials returns the credentials of live validated sessions
func (r *Repository) ListOnlineCredentials(ctx context.Context, appID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT credential FROM application_sessions
		WHERE application_id = $1 AND is_validated = TRUE AND expires_at > NOW() AND credential IS NOT NULL
		ORDER BY credential`,
		appID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list online credentials: %w", err)
	}
	defer rows.Close()

	var creds []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
