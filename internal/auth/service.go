package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"hexauth-server/internal/database"
	"hexauth-server/internal/logging"
)

// Store is the account persistence surface. *database.Repository
// satisfies it.
type Store interface {
	CreateAccount(ctx context.Context, username, email, passwordHash, ownerID string) (*database.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*database.Account, error)
	GetAccountByID(ctx context.Context, id string) (*database.Account, error)
	GetAccountByOwnerID(ctx context.Context, ownerID string) (*database.Account, error)
	SetAccountPassword(ctx context.Context, id, passwordHash string) error
	TouchAccountLogin(ctx context.Context, id, ip string) error
}

// Service handles platform owner authentication
type Service struct {
	store     Store
	jwt       *JWTManager
	passwords *PasswordManager
	logger    *logging.Logger
}

// NewService creates an owner auth service
func NewService(store Store, jwt *JWTManager, passwords *PasswordManager) *Service {
	return &Service{
		store:     store,
		jwt:       jwt,
		passwords: passwords,
		logger:    logging.Default().WithComponent("auth"),
	}
}

// newOwnerID returns the short public tenant identifier: 10 hex chars
func newOwnerID() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Register creates a new owner account with a fresh owner id
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.Account, error) {
	if err := s.passwords.ValidatePasswordStrength(req.Password); err != nil {
		return nil, ErrWeakPassword
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// owner_id is unique; retry the improbable 40-bit collision
	for attempt := 0; attempt < 3; attempt++ {
		ownerID, err := newOwnerID()
		if err != nil {
			return nil, err
		}
		if taken, err := s.store.GetAccountByOwnerID(ctx, ownerID); err != nil {
			return nil, err
		} else if taken != nil {
			continue
		}

		acct, err := s.store.CreateAccount(ctx, req.Username, req.Email, hash, ownerID)
		if err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				if existing, lookupErr := s.store.GetAccountByUsername(ctx, req.Username); lookupErr == nil && existing != nil {
					return nil, ErrAccountExists
				}
				continue
			}
			return nil, err
		}

		s.logger.Info("owner account registered", "username", req.Username, "owner_id", ownerID)
		return acct, nil
	}
	return nil, ErrAccountExists
}

// Login verifies credentials and issues an access token
func (s *Service) Login(ctx context.Context, req LoginRequest, ip string) (*LoginResponse, error) {
	acct, err := s.store.GetAccountByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidCredentials
	}
	if acct.IsBanned {
		return nil, ErrAccountBanned
	}
	if !s.passwords.VerifyPassword(req.Password, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(OwnerClaims{
		AccountID: acct.ID,
		Username:  acct.Username,
		OwnerID:   acct.OwnerID,
		Role:      acct.Role,
	})
	if err != nil {
		return nil, err
	}

	if ip != "" {
		if err := s.store.TouchAccountLogin(ctx, acct.ID, ip); err != nil {
			s.logger.Warn("failed to record owner login", "error", err.Error())
		}
	}

	return &LoginResponse{
		Account:     toAccountResponse(acct),
		AccessToken: token,
		ExpiresIn:   s.jwt.GetAccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}

// ChangePassword swaps the owner's password after confirming the
// current one
func (s *Service) ChangePassword(ctx context.Context, claims *OwnerClaims, req ChangePasswordRequest) error {
	acct, err := s.store.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrAccountNotFound
	}
	if !s.passwords.VerifyPassword(req.CurrentPassword, acct.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := s.passwords.ValidatePasswordStrength(req.NewPassword); err != nil {
		return ErrWeakPassword
	}

	hash, err := s.passwords.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetAccountPassword(ctx, acct.ID, hash); err != nil {
		return err
	}

	s.logger.Info("owner password changed", "username", acct.Username)
	return nil
}

// Account returns the owner account behind validated claims
func (s *Service) Account(ctx context.Context, claims *OwnerClaims) (*database.Account, error) {
	acct, err := s.store.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

func toAccountResponse(acct *database.Account) AccountResponse {
	return AccountResponse{
		ID:        acct.ID,
		Username:  acct.Username,
		Email:     acct.Email,
		OwnerID:   acct.OwnerID,
		Role:      acct.Role,
		CreatedAt: acct.CreatedAt,
	}
}
