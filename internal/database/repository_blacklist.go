package database

import (
	"context"
	"fmt"
)

// IsBlacklisted reports whether the given IP or HWID is blocked for an
// application. Either value may be empty.
func (r *Repository) IsBlacklisted(ctx context.Context, appID, ip, hwid string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blacklists
			WHERE application_id = $1
			  AND ((ip_address IS NOT NULL AND ip_address = $2 AND $2 <> '')
			    OR (hwid IS NOT NULL AND hwid = $3 AND $3 <> ''))
		)`,
		appID, ip, hwid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists, nil
}

// AddBlacklistEntry blocks an IP and/or HWID for an application
func (r *Repository) AddBlacklistEntry(ctx context.Context, appID string, ip, hwid, reason *string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO blacklists (application_id, ip_address, hwid, reason) VALUES ($1, $2, $3, $4)`,
		appID, ip, hwid, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

// IsWhitelisted reports whether an IP is exempt from the VPN block
func (r *Repository) IsWhitelisted(ctx context.Context, appID, ip string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelists WHERE application_id = $1 AND ip_address = $2)`,
		appID, ip,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}
	return exists, nil
}

// AddWhitelistEntry exempts an IP from the VPN block
func (r *Repository) AddWhitelistEntry(ctx context.Context, appID, ip string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO whitelists (application_id, ip_address) VALUES ($1, $2)
		ON CONFLICT (application_id, ip_address) DO NOTHING`,
		appID, ip,
	)
	if err != nil {
		return fmt.Errorf("failed to add whitelist entry: %w", err)
	}
	return nil
}
