package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetChatChannel returns an application's channel by name, or nil
func (r *Repository) GetChatChannel(ctx context.Context, appID, name string) (*ChatChannel, error) {
	var c ChatChannel
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, application_id, name, delay_seconds FROM chat_channels WHERE application_id = $1 AND name = $2`,
		appID, name,
	).Scan(&c.ID, &c.ApplicationID, &c.Name, &c.DelaySecs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat channel: %w", err)
	}
	return &c, nil
}

// CreateChatChannel defines a channel for an application
func (r *Repository) CreateChatChannel(ctx context.Context, appID, name string, delaySecs int) (*ChatChannel, error) {
	var c ChatChannel
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO chat_channels (application_id, name, delay_seconds)
		VALUES ($1, $2, $3)
		RETURNING id, application_id, name, delay_seconds`,
		appID, name, delaySecs,
	).Scan(&c.ID, &c.ApplicationID, &c.Name, &c.DelaySecs)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create chat channel: %w", err)
	}
	return &c, nil
}

// ListChatMessages returns a channel's messages oldest first
func (r *Repository) ListChatMessages(ctx context.Context, channelID string, limit int) ([]*ChatMessage, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, channel_id, author, message, sent_at
		FROM chat_messages
		WHERE channel_id = $1
		ORDER BY sent_at
		LIMIT $2`,
		channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Author, &m.Message, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// LastChatMessageAt returns when the author last posted in the channel,
// or nil if they never have
func (r *Repository) LastChatMessageAt(ctx context.Context, channelID, author string) (*time.Time, error) {
	var t *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT MAX(sent_at) FROM chat_messages WHERE channel_id = $1 AND author = $2`,
		channelID, author,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last chat message time: %w", err)
	}
	return t, nil
}

// AddChatMessage appends a message to a channel
func (r *Repository) AddChatMessage(ctx context.Context, channelID, author, message string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO chat_messages (channel_id, author, message) VALUES ($1, $2, $3)`,
		channelID, author, message,
	)
	if err != nil {
		return fmt.Errorf("failed to add chat message: %w", err)
	}
	return nil
}
