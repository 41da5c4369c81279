package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, username, email, password_hash, owner_id, role, is_banned, ban_reason, last_ip, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.OwnerID,
		&a.Role, &a.IsBanned, &a.BanReason, &a.LastIP,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

// CreateAccount inserts a new platform owner account
func (r *Repository) CreateAccount(ctx context.Context, username, email, passwordHash, ownerID string) (*Account, error) {
	query := `
		INSERT INTO accounts (username, email, password_hash, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns

	acct, err := scanAccount(r.db.Pool.QueryRow(ctx, query, username, email, passwordHash, ownerID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return acct, nil
}

// GetAccountByUsername returns the account with the given username, or nil
func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(r.db.Pool.QueryRow(ctx, query, username))
}

// GetAccountByOwnerID returns the account with the given public owner id, or nil
func (r *Repository) GetAccountByOwnerID(ctx context.Context, ownerID string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1`
	return scanAccount(r.db.Pool.QueryRow(ctx, query, ownerID))
}

// GetAccountByID returns the account with the given row id, or nil
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.Pool.QueryRow(ctx, query, id))
}

// SetAccountPassword replaces an owner's stored password hash
func (r *Repository) SetAccountPassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("failed to update account password: %w", err)
	}
	return nil
}

// TouchAccountLogin records the source IP of the latest owner login
func (r *Repository) TouchAccountLogin(ctx context.Context, id, ip string) error {
	query := `UPDATE accounts SET last_ip = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, id, ip); err != nil {
		return fmt.Errorf("failed to update account login: %w", err)
	}
	return nil
}
