package database

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// maxLogLength caps client-submitted log lines
const maxLogLength = 275

// AddUserLog persists a client-submitted log line, truncating oversize input
func (r *Repository) AddUserLog(ctx context.Context, appID string, credential, pcUser *string, message string) error {
	if len(message) > maxLogLength {
		cut := maxLogLength
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut]
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_logs (application_id, credential, pc_user, message) VALUES ($1, $2, $3, $4)`,
		appID, credential, pcUser, message,
	)
	if err != nil {
		return fmt.Errorf("failed to add user log: %w", err)
	}
	return nil
}

// ListUserLogs returns an application's log lines newest first
func (r *Repository) ListUserLogs(ctx context.Context, appID string, limit int) ([]*UserLog, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, application_id, credential, message, pc_user, created_at
		FROM user_logs
		WHERE application_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		appID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user logs: %w", err)
	}
	defer rows.Close()

	var logs []*UserLog
	for rows.Next() {
		var l UserLog
		if err := rows.Scan(&l.ID, &l.ApplicationID, &l.Credential, &l.Message, &l.PCUser, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
