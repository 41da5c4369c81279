package database

import (
	"context"
	"fmt"
)

// PlatformStats is the public aggregate counters exposed on the stats page
type PlatformStats struct {
	Applications int `json:"apps"`
	Users        int `json:"users"`
	Licenses     int `json:"keys"`
	Accounts     int `json:"members"`
}

// GetPlatformStats counts the public aggregates in one round trip
func (r *Repository) GetPlatformStats(ctx context.Context) (*PlatformStats, error) {
	var s PlatformStats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM applications),
			(SELECT COUNT(*) FROM application_users),
			(SELECT COUNT(*) FROM licenses),
			(SELECT COUNT(*) FROM accounts)`,
	).Scan(&s.Applications, &s.Users, &s.Licenses, &s.Accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform stats: %w", err)
	}
	return &s, nil
}
