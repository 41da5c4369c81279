package database

import (
	"context"
	"fmt"
)

// CreateSubscription defines a plan for an application
func (r *Repository) CreateSubscription(ctx context.Context, appID, name, level string) (*Subscription, error) {
	var s Subscription
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO subscriptions (application_id, name, level)
		VALUES ($1, $2, $3)
		RETURNING id, application_id, name, level`,
		appID, name, level,
	).Scan(&s.ID, &s.ApplicationID, &s.Name, &s.Level)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return &s, nil
}

// ListSubscriptions returns all plans defined for an application
func (r *Repository) ListSubscriptions(ctx context.Context, appID string) ([]*Subscription, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, application_id, name, level FROM subscriptions WHERE application_id = $1 ORDER BY level`,
		appID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.ApplicationID, &s.Name, &s.Level); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

// ListUserSubscriptions returns a user's grants joined with plan metadata
func (r *Repository) ListUserSubscriptions(ctx context.Context, userID string) ([]*UserSubscription, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT g.id, g.user_id, g.subscription_id, g.application_id, g.expires_at,
		       g.is_paused, COALESCE(g.paused_remaining_seconds, 0), g.license_key,
		       g.created_at, s.name, s.level
		FROM user_subscriptions g
		JOIN subscriptions s ON s.id = g.subscription_id
		WHERE g.user_id = $1
		ORDER BY g.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user subscriptions: %w", err)
	}
	defer rows.Close()

	var grants []*UserSubscription
	for rows.Next() {
		var g UserSubscription
		err := rows.Scan(&g.ID, &g.UserID, &g.SubscriptionID, &g.ApplicationID,
			&g.ExpiresAt, &g.IsPaused, &g.PausedRemainingSecs, &g.LicenseKey,
			&g.CreatedAt, &g.SubscriptionName, &g.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user subscription: %w", err)
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

// PauseUserSubscription freezes a grant, snapshotting whatever duration is
// left. The is_paused guard makes a double pause a no-op instead of a
// second snapshot that would zero the remainder, and an already expired
// grant cannot be paused at all. The application filter keeps one tenant
// from touching another tenant's grants.
func (r *Repository) PauseUserSubscription(ctx context.Context, appID, grantID string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE user_subscriptions
		SET is_paused = TRUE,
		    paused_remaining_seconds = EXTRACT(EPOCH FROM (expires_at - NOW()))::BIGINT
		WHERE id = $1 AND application_id = $2 AND is_paused = FALSE AND expires_at > NOW()`,
		grantID, appID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to pause subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnpauseUserSubscription resumes a grant, restarting the clock from now
// with the frozen remainder
func (r *Repository) UnpauseUserSubscription(ctx context.Context, appID, grantID string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE user_subscriptions
		SET is_paused = FALSE,
		    expires_at = NOW() + COALESCE(paused_remaining_seconds, 0) * INTERVAL '1 second',
		    paused_remaining_seconds = NULL
		WHERE id = $1 AND application_id = $2 AND is_paused = TRUE`,
		grantID, appID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unpause subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteUserSubscription removes a grant
func (r *Repository) DeleteUserSubscription(ctx context.Context, appID, grantID string) error {
	if _, err := r.db.Pool.Exec(ctx,
		`DELETE FROM user_subscriptions WHERE id = $1 AND application_id = $2`,
		grantID, appID,
	); err != nil {
		return fmt.Errorf("failed to delete user subscription: %w", err)
	}
	return nil
}
