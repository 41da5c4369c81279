package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const applicationColumns = `id, owner_id, name, secret, enabled, paused, banned, version,
	download_url, file_hash, hwid_check_enabled, force_hwid, min_hwid_length,
	vpn_block_enabled, hash_check_enabled, block_leaked_passwords,
	session_expiry_seconds, min_username_length, license_mask, cooldown_seconds,
	webhook_url, panel_url, messages, created_at, updated_at`

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Secret, &a.Enabled, &a.Paused, &a.Banned,
		&a.Version, &a.DownloadURL, &a.FileHash, &a.HWIDCheckEnabled, &a.ForceHWID,
		&a.MinHWIDLength, &a.VPNBlockEnabled, &a.HashCheckEnabled,
		&a.BlockLeakedPasswords, &a.SessionExpirySecs, &a.MinUsernameLength,
		&a.LicenseMask, &a.CooldownSecs, &a.WebhookURL, &a.PanelURL, &a.Messages,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}
	a.Messages = a.Messages.WithDefaults()
	return &a, nil
}

// CreateApplication registers a new tenant application
func (r *Repository) CreateApplication(ctx context.Context, ownerID, name, secret string) (*Application, error) {
	query := `
		INSERT INTO applications (owner_id, name, secret)
		VALUES ($1, $2, $3)
		RETURNING ` + applicationColumns

	app, err := scanApplication(r.db.Pool.QueryRow(ctx, query, ownerID, name, secret))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return app, nil
}

// GetApplication resolves a tenant by the (owner_id, name) pair clients send
func (r *Repository) GetApplication(ctx context.Context, ownerID, name string) (*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE owner_id = $1 AND name = $2`
	return scanApplication(r.db.Pool.QueryRow(ctx, query, ownerID, name))
}

// ListApplicationsByOwner returns all applications registered by an owner
func (r *Repository) ListApplicationsByOwner(ctx context.Context, ownerID string) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE owner_id = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateApplicationSettings persists tenant-editable settings
func (r *Repository) UpdateApplicationSettings(ctx context.Context, app *Application) error {
	query := `
		UPDATE applications SET
			enabled = $2, paused = $3, version = $4, download_url = $5, file_hash = $6,
			hwid_check_enabled = $7, force_hwid = $8, min_hwid_length = $9,
			vpn_block_enabled = $10, hash_check_enabled = $11, block_leaked_passwords = $12,
			session_expiry_seconds = $13, min_username_length = $14, license_mask = $15,
			cooldown_seconds = $16, webhook_url = $17, panel_url = $18, messages = $19,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query,
		app.ID, app.Enabled, app.Paused, app.Version, app.DownloadURL, app.FileHash,
		app.HWIDCheckEnabled, app.ForceHWID, app.MinHWIDLength,
		app.VPNBlockEnabled, app.HashCheckEnabled, app.BlockLeakedPasswords,
		app.SessionExpirySecs, app.MinUsernameLength, app.LicenseMask,
		app.CooldownSecs, app.WebhookURL, app.PanelURL, app.Messages,
	)
	if err != nil {
		return fmt.Errorf("failed to update application settings: %w", err)
	}
	return nil
}
