package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetFile returns a downloadable file by its public id, or nil
func (r *Repository) GetFile(ctx context.Context, appID, fileID string) (*File, error) {
	var f File
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, application_id, file_id, url FROM files WHERE application_id = $1 AND file_id = $2`,
		appID, fileID,
	).Scan(&f.ID, &f.ApplicationID, &f.FileID, &f.URL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &f, nil
}

// CreateFile registers a downloadable file
func (r *Repository) CreateFile(ctx context.Context, appID, fileID, url string) (*File, error) {
	var f File
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO files (application_id, file_id, url)
		VALUES ($1, $2, $3)
		RETURNING id, application_id, file_id, url`,
		appID, fileID, url,
	).Scan(&f.ID, &f.ApplicationID, &f.FileID, &f.URL)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &f, nil
}

// GetWebhookEndpoint returns a registered webhook by its public id, or nil
func (r *Repository) GetWebhookEndpoint(ctx context.Context, appID, webhookID string) (*WebhookEndpoint, error) {
	var w WebhookEndpoint
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, application_id, webhook_id, url, user_agent FROM webhooks WHERE application_id = $1 AND webhook_id = $2`,
		appID, webhookID,
	).Scan(&w.ID, &w.ApplicationID, &w.WebhookID, &w.URL, &w.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &w, nil
}

// CreateWebhookEndpoint registers an outbound webhook URL
func (r *Repository) CreateWebhookEndpoint(ctx context.Context, appID, webhookID, url string, userAgent *string) (*WebhookEndpoint, error) {
	var w WebhookEndpoint
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO webhooks (application_id, webhook_id, url, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING id, application_id, webhook_id, url, user_agent`,
		appID, webhookID, url, userAgent,
	).Scan(&w.ID, &w.ApplicationID, &w.WebhookID, &w.URL, &w.UserAgent)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return &w, nil
}
