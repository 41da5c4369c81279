// Package identity is the end-user registry: registration, password
// authentication and the rename flow for tenant applications.
package identity

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"hexauth-server/internal/database"
	"hexauth-server/internal/logging"
)

// Store is the persistence surface the registry needs. *database.Repository
// satisfies it.
type Store interface {
	CreateAppUser(ctx context.Context, appID, username, passwordHash string, email, hwid, ip *string) (*database.AppUser, error)
	GetAppUser(ctx context.Context, appID, username string) (*database.AppUser, error)
	TouchUserLogin(ctx context.Context, userID string, ip, hwid *string) error
	SetUserHWID(ctx context.Context, userID, hwid string) error
	RenameAppUser(ctx context.Context, userID, newUsername string) error
	SetUserPassword(ctx context.Context, userID, passwordHash string) error
	BanAppUser(ctx context.Context, userID, reason string) error
}

// Sentinel errors for registry operations
var (
	ErrUsernameTaken    = errors.New("identity: username taken")
	ErrUsernameTooShort = errors.New("identity: username too short")
	ErrUserNotFound     = errors.New("identity: user not found")
	ErrPasswordMismatch = errors.New("identity: password mismatch")
	ErrUserBanned       = errors.New("identity: user banned")
	ErrUserOnCooldown   = errors.New("identity: user on reset cooldown")
)

// Service coordinates end-user identity
type Service struct {
	store  Store
	logger *logging.Logger
}

// NewService creates an identity registry
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: logging.Default().WithComponent("identity"),
	}
}

// HashPassword hashes a plaintext password for storage
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates a new end user after username validation
func (s *Service) Register(ctx context.Context, app *database.Application, username, password string, email, hwid, ip *string) (*database.AppUser, error) {
	if len(username) < app.MinUsernameLength {
		return nil, ErrUsernameTooShort
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateAppUser(ctx, app.ID, username, hash, email, hwid, ip)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", "app_id", app.ID, "username", username)
	return user, nil
}

// Authenticate verifies a username/password pair. Ban state wins over a
// wrong password so a banned user always sees the ban, and a hardware
// reset cooldown locks the account out until it lapses.
func (s *Service) Authenticate(ctx context.Context, appID, username, password string) (*database.AppUser, error) {
	user, err := s.store.GetAppUser(ctx, appID, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Banned {
		return nil, ErrUserBanned
	}
	if user.OnCooldown(time.Now()) {
		return nil, ErrUserOnCooldown
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrPasswordMismatch
	}
	return user, nil
}

// Lookup returns a user by name without checking credentials
func (s *Service) Lookup(ctx context.Context, appID, username string) (*database.AppUser, error) {
	user, err := s.store.GetAppUser(ctx, appID, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RecordLogin stamps a successful login with its source IP and HWID
func (s *Service) RecordLogin(ctx context.Context, userID string, ip, hwid *string) error {
	return s.store.TouchUserLogin(ctx, userID, ip, hwid)
}

// BindHWID stores the first hardware id a user presents
func (s *Service) BindHWID(ctx context.Context, userID, hwid string) error {
	return s.store.SetUserHWID(ctx, userID, hwid)
}

// ChangeUsername renames a user after the same validation as registration
func (s *Service) ChangeUsername(ctx context.Context, app *database.Application, username, newUsername string) error {
	if len(newUsername) < app.MinUsernameLength {
		return ErrUsernameTooShort
	}

	user, err := s.Lookup(ctx, app.ID, username)
	if err != nil {
		return err
	}

	if err := s.store.RenameAppUser(ctx, user.ID, newUsername); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return ErrUsernameTaken
		}
		return err
	}

	s.logger.Info("user renamed", "app_id", app.ID, "from", username, "to", newUsername)
	return nil
}

// Ban marks a user banned
func (s *Service) Ban(ctx context.Context, appID, username, reason string) error {
	user, err := s.Lookup(ctx, appID, username)
	if err != nil {
		return err
	}
	if err := s.store.BanAppUser(ctx, user.ID, reason); err != nil {
		return err
	}
	s.logger.Info("user banned", "app_id", appID, "username", username)
	return nil
}
