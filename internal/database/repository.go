package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors surfaced by repository operations. Services translate
// these into tenant-facing messages.
var (
	ErrDuplicate       = errors.New("database: duplicate record")
	ErrLicenseNotFound = errors.New("database: license not found")
	ErrLicenseUsed     = errors.New("database: license already used")
	ErrLicenseBanned   = errors.New("database: license banned")
	ErrNoPlanForLevel  = errors.New("database: no subscription plan for license level")
)

// Repository provides access to all persisted platform state
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// isUniqueViolation reports whether err is a unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
