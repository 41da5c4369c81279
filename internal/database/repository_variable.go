package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetAppVariable returns a tenant-defined variable's value, or nil
func (r *Repository) GetAppVariable(ctx context.Context, appID, name string) (*AppVariable, error) {
	var v AppVariable
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, application_id, name, data FROM app_variables WHERE application_id = $1 AND name = $2`,
		appID, name,
	).Scan(&v.ID, &v.ApplicationID, &v.Name, &v.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get app variable: %w", err)
	}
	return &v, nil
}

// SetAppVariable creates or replaces a tenant-defined variable
func (r *Repository) SetAppVariable(ctx context.Context, appID, name, data string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO app_variables (application_id, name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (application_id, name) DO UPDATE SET data = EXCLUDED.data`,
		appID, name, data,
	)
	if err != nil {
		return fmt.Errorf("failed to set app variable: %w", err)
	}
	return nil
}

// GetUserVariable returns a per-user variable, or nil
func (r *Repository) GetUserVariable(ctx context.Context, userID, appID, name string) (*UserVariable, error) {
	var v UserVariable
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, application_id, name, data, read_only
		FROM user_variables
		WHERE user_id = $1 AND application_id = $2 AND name = $3`,
		userID, appID, name,
	).Scan(&v.ID, &v.UserID, &v.ApplicationID, &v.Name, &v.Data, &v.ReadOnly)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user variable: %w", err)
	}
	return &v, nil
}

// SetUserVariable creates or replaces a per-user variable. Read-only slots
// keep their value.
func (r *Repository) SetUserVariable(ctx context.Context, userID, appID, name, data string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_variables (user_id, application_id, name, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, application_id, name) DO UPDATE SET data = EXCLUDED.data
		WHERE user_variables.read_only = FALSE`,
		userID, appID, name, data,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set user variable: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
