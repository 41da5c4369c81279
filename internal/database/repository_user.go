package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const appUserColumns = `id, application_id, username, email, password_hash, hwid, banned,
	ban_reason, ip_address, cooldown_until, last_login, created_at, updated_at`

func scanAppUser(row pgx.Row) (*AppUser, error) {
	var u AppUser
	var passwordHash *string
	err := row.Scan(
		&u.ID, &u.ApplicationID, &u.Username, &u.Email, &passwordHash, &u.HWID,
		&u.Banned, &u.BanReason, &u.IPAddress, &u.CooldownUntil, &u.LastLogin,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan application user: %w", err)
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	return &u, nil
}

// CreateAppUser inserts a new end user for an application
func (r *Repository) CreateAppUser(ctx context.Context, appID, username, passwordHash string, email, hwid, ip *string) (*AppUser, error) {
	query := `
		INSERT INTO application_users (application_id, username, password_hash, email, hwid, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + appUserColumns

	user, err := scanAppUser(r.db.Pool.QueryRow(ctx, query, appID, username, passwordHash, email, hwid, ip))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// GetAppUser returns an application's user by username, or nil
func (r *Repository) GetAppUser(ctx context.Context, appID, username string) (*AppUser, error) {
	query := `SELECT ` + appUserColumns + ` FROM application_users WHERE application_id = $1 AND username = $2`
	return scanAppUser(r.db.Pool.QueryRow(ctx, query, appID, username))
}

// TouchUserLogin records a successful login: source IP, HWID and timestamp
func (r *Repository) TouchUserLogin(ctx context.Context, userID string, ip, hwid *string) error {
	query := `
		UPDATE application_users
		SET ip_address = COALESCE($2, ip_address),
		    hwid = COALESCE($3, hwid),
		    last_login = NOW(),
		    updated_at = NOW()
		WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, ip, hwid); err != nil {
		return fmt.Errorf("failed to update user login: %w", err)
	}
	return nil
}

// SetUserHWID binds a hardware id to the user
func (r *Repository) SetUserHWID(ctx context.Context, userID, hwid string) error {
	query := `UPDATE application_users SET hwid = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, hwid); err != nil {
		return fmt.Errorf("failed to set user hwid: %w", err)
	}
	return nil
}

// ResetUserHWID clears the bound hardware id and starts the cooldown
func (r *Repository) ResetUserHWID(ctx context.Context, userID string, cooldownUntil time.Time) error {
	query := `UPDATE application_users SET hwid = NULL, cooldown_until = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, cooldownUntil); err != nil {
		return fmt.Errorf("failed to reset user hwid: %w", err)
	}
	return nil
}

// BanAppUser marks a user banned with the given reason
func (r *Repository) BanAppUser(ctx context.Context, userID, reason string) error {
	query := `UPDATE application_users SET banned = TRUE, ban_reason = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, reason); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

// UnbanAppUser clears a user's ban
func (r *Repository) UnbanAppUser(ctx context.Context, userID string) error {
	query := `UPDATE application_users SET banned = FALSE, ban_reason = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// RenameAppUser changes a user's username, failing on collision
func (r *Repository) RenameAppUser(ctx context.Context, userID, newUsername string) error {
	query := `UPDATE application_users SET username = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, newUsername); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to rename user: %w", err)
	}
	return nil
}

// SetUserPassword replaces a user's password hash
func (r *Repository) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE application_users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to set user password: %w", err)
	}
	return nil
}

// CountAppUsers returns the number of registered users for an application
func (r *Repository) CountAppUsers(ctx context.Context, appID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM application_users WHERE application_id = $1`, appID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
