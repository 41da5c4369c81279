package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const licenseColumns = `id, application_id, key, level, note, status, expires_seconds,
	generated_by, generated_at, used_at, used_by, ban_reason`

func scanLicense(row pgx.Row) (*License, error) {
	var l License
	err := row.Scan(
		&l.ID, &l.ApplicationID, &l.Key, &l.Level, &l.Note, &l.Status,
		&l.ExpiresSecs, &l.GeneratedBy, &l.GeneratedAt, &l.UsedAt, &l.UsedBy,
		&l.BanReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan license: %w", err)
	}
	return &l, nil
}

// CreateLicense inserts a single generated key
func (r *Repository) CreateLicense(ctx context.Context, appID, key, level string, expiresSecs int64, note, generatedBy *string) (*License, error) {
	query := `
		INSERT INTO licenses (application_id, key, level, expires_seconds, note, generated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + licenseColumns

	lic, err := scanLicense(r.db.Pool.QueryRow(ctx, query, appID, key, level, expiresSecs, note, generatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return lic, nil
}

// GetLicense returns an application's license by key, or nil
func (r *Repository) GetLicense(ctx context.Context, appID, key string) (*License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE application_id = $1 AND key = $2`
	return scanLicense(r.db.Pool.QueryRow(ctx, query, appID, key))
}

// ListLicenses returns all licenses for an application, newest first
func (r *Repository) ListLicenses(ctx context.Context, appID string) ([]*License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE application_id = $1 ORDER BY generated_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, lic)
	}
	return licenses, rows.Err()
}

// CountLicenses returns the total number of keys issued for an application
func (r *Repository) CountLicenses(ctx context.Context, appID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM licenses WHERE application_id = $1`, appID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count licenses: %w", err)
	}
	return count, nil
}

// DeleteLicense removes a license key
func (r *Repository) DeleteLicense(ctx context.Context, appID, key string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM licenses WHERE application_id = $1 AND key = $2`, appID, key); err != nil {
		return fmt.Errorf("failed to delete license: %w", err)
	}
	return nil
}

// RedeemLicense consumes a key for a user and grants the subscription its
// level maps to, all in one transaction. The status guard on the UPDATE
// makes consumption atomic: concurrent redeems of the same key produce
// exactly one winner, everyone else gets ErrLicenseUsed. If the key's level
// has no plan the transaction rolls back and the key stays unused.
func (r *Repository) RedeemLicense(ctx context.Context, appID, userID, key, credential string) (*UserSubscription, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var level string
	var expiresSecs int64
	err = tx.QueryRow(ctx, `
		UPDATE licenses
		SET status = 'used', used_at = NOW(), used_by = $3
		WHERE application_id = $1 AND key = $2 AND status = 'not_used'
		RETURNING level, expires_seconds`,
		appID, key, credential,
	).Scan(&level, &expiresSecs)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to consume license: %w", err)
		}
		// The guard rejected the row. Look at the actual state to say why.
		var status LicenseStatus
		stErr := tx.QueryRow(ctx,
			`SELECT status FROM licenses WHERE application_id = $1 AND key = $2`,
			appID, key,
		).Scan(&status)
		if stErr != nil {
			if errors.Is(stErr, pgx.ErrNoRows) {
				return nil, ErrLicenseNotFound
			}
			return nil, fmt.Errorf("failed to inspect license: %w", stErr)
		}
		if status == LicenseBanned {
			return nil, ErrLicenseBanned
		}
		return nil, ErrLicenseUsed
	}

	var subID, subName string
	err = tx.QueryRow(ctx,
		`SELECT id, name FROM subscriptions WHERE application_id = $1 AND level = $2`,
		appID, level,
	).Scan(&subID, &subName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPlanForLevel
		}
		return nil, fmt.Errorf("failed to resolve subscription plan: %w", err)
	}

	// An active grant for the same plan is extended, otherwise a fresh
	// grant starts from now.
	var existingID string
	var existingExpiry time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, expires_at FROM user_subscriptions
		WHERE user_id = $1 AND subscription_id = $2 AND is_paused = FALSE`,
		userID, subID,
	).Scan(&existingID, &existingExpiry)

	duration := time.Duration(expiresSecs) * time.Second
	var grant UserSubscription
	switch {
	case err == nil:
		base := existingExpiry
		if base.Before(time.Now()) {
			base = time.Now()
		}
		newExpiry := base.Add(duration)
		err = tx.QueryRow(ctx, `
			UPDATE user_subscriptions SET expires_at = $2, license_key = $3
			WHERE id = $1
			RETURNING id, user_id, subscription_id, application_id, expires_at,
				is_paused, COALESCE(paused_remaining_seconds, 0), license_key, created_at`,
			existingID, newExpiry, key,
		).Scan(&grant.ID, &grant.UserID, &grant.SubscriptionID, &grant.ApplicationID,
			&grant.ExpiresAt, &grant.IsPaused, &grant.PausedRemainingSecs,
			&grant.LicenseKey, &grant.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to extend subscription: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO user_subscriptions (user_id, subscription_id, application_id, expires_at, license_key)
			VALUES ($1, $2, $3, NOW() + $4 * INTERVAL '1 second', $5)
			RETURNING id, user_id, subscription_id, application_id, expires_at,
				is_paused, COALESCE(paused_remaining_seconds, 0), license_key, created_at`,
			userID, subID, appID, expiresSecs, key,
		).Scan(&grant.ID, &grant.UserID, &grant.SubscriptionID, &grant.ApplicationID,
			&grant.ExpiresAt, &grant.IsPaused, &grant.PausedRemainingSecs,
			&grant.LicenseKey, &grant.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscription grant: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up existing grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit license redemption: %w", err)
	}

	grant.SubscriptionName = subName
	grant.Level = level
	return &grant, nil
}

// BanLicense marks a key banned and revokes any grant it produced
func (r *Repository) BanLicense(ctx context.Context, appID, key, reason string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE licenses SET status = 'banned', ban_reason = $3
		WHERE application_id = $1 AND key = $2`,
		appID, key, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to ban license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLicenseNotFound
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM user_subscriptions WHERE application_id = $1 AND license_key = $2`,
		appID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	return tx.Commit(ctx)
}

// UnbanLicense lifts a ban. A key that was consumed before the ban returns
// to used and its consumer gets the grant back, expiring as if the ban
// never happened; an unconsumed key returns to the pool.
func (r *Repository) UnbanLicense(ctx context.Context, appID, key string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var usedBy *string
	var usedAt *time.Time
	var level string
	var expiresSecs int64
	err = tx.QueryRow(ctx, `
		SELECT used_by, used_at, level, expires_seconds
		FROM licenses
		WHERE application_id = $1 AND key = $2 AND status = 'banned'`,
		appID, key,
	).Scan(&usedBy, &usedAt, &level, &expiresSecs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLicenseNotFound
		}
		return fmt.Errorf("failed to inspect banned license: %w", err)
	}

	if usedBy == nil {
		_, err = tx.Exec(ctx, `
			UPDATE licenses SET status = 'not_used', ban_reason = NULL
			WHERE application_id = $1 AND key = $2`,
			appID, key,
		)
		if err != nil {
			return fmt.Errorf("failed to restore license: %w", err)
		}
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE licenses SET status = 'used', ban_reason = NULL
		WHERE application_id = $1 AND key = $2`,
		appID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to restore license: %w", err)
	}

	var userID, subID string
	err = tx.QueryRow(ctx, `
		SELECT u.id, s.id
		FROM application_users u, subscriptions s
		WHERE u.application_id = $1 AND u.username = $2
		  AND s.application_id = $1 AND s.level = $3`,
		appID, *usedBy, level,
	).Scan(&userID, &subID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Consumer or plan is gone, nothing to restore.
			return tx.Commit(ctx)
		}
		return fmt.Errorf("failed to resolve grant consumer: %w", err)
	}

	expiresAt := usedAt.Add(time.Duration(expiresSecs) * time.Second)
	_, err = tx.Exec(ctx, `
		INSERT INTO user_subscriptions (user_id, subscription_id, application_id, expires_at, license_key)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, subID, appID, expiresAt, key,
	)
	if err != nil {
		return fmt.Errorf("failed to restore grant: %w", err)
	}

	return tx.Commit(ctx)
}
