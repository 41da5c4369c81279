// Package license manages the key ledger: generation from the tenant's
// mask, atomic one-time redemption and the ban lifecycle.
package license

import (
	"context"
	"errors"
	"fmt"

	"hexauth-server/internal/database"
	"hexauth-server/internal/logging"
)

// Store is the persistence surface the service needs. *database.Repository
// satisfies it.
type Store interface {
	CreateLicense(ctx context.Context, appID, key, level string, expiresSecs int64, note, generatedBy *string) (*database.License, error)
	GetLicense(ctx context.Context, appID, key string) (*database.License, error)
	ListLicenses(ctx context.Context, appID string) ([]*database.License, error)
	DeleteLicense(ctx context.Context, appID, key string) error
	RedeemLicense(ctx context.Context, appID, userID, key, credential string) (*database.UserSubscription, error)
	BanLicense(ctx context.Context, appID, key, reason string) error
	UnbanLicense(ctx context.Context, appID, key string) error
}

// maxCollisionRetries bounds regeneration when a rendered key collides
const maxCollisionRetries = 10

// Service coordinates license operations
type Service struct {
	store  Store
	logger *logging.Logger
}

// NewService creates a license service
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: logging.Default().WithComponent("license"),
	}
}

// Generate creates count keys from the mask, retrying individual
// collisions with a fresh render
func (s *Service) Generate(ctx context.Context, appID, mask, level string, expiresSecs int64, count int, note, generatedBy *string) ([]*database.License, error) {
	if count < 1 {
		count = 1
	}

	licenses := make([]*database.License, 0, count)
	for i := 0; i < count; i++ {
		var created *database.License
		for attempt := 0; attempt < maxCollisionRetries; attempt++ {
			key, err := GenerateKey(mask)
			if err != nil {
				return licenses, err
			}
			created, err = s.store.CreateLicense(ctx, appID, key, level, expiresSecs, note, generatedBy)
			if err == nil {
				break
			}
			if !errors.Is(err, database.ErrDuplicate) {
				return licenses, err
			}
			created = nil
		}
		if created == nil {
			return licenses, fmt.Errorf("mask %q exhausted after %d collisions", mask, maxCollisionRetries)
		}
		licenses = append(licenses, created)
	}

	s.logger.Info("licenses generated", "app_id", appID, "count", len(licenses), "level", level)
	return licenses, nil
}

// Redeem consumes a key for a user and returns the granted subscription
func (s *Service) Redeem(ctx context.Context, appID, userID, key, credential string) (*database.UserSubscription, error) {
	grant, err := s.store.RedeemLicense(ctx, appID, userID, key, credential)
	if err != nil {
		return nil, err
	}
	s.logger.Info("license redeemed", "app_id", appID, "credential", credential, "plan", grant.SubscriptionName)
	return grant, nil
}

// Get returns a license by key, or nil
func (s *Service) Get(ctx context.Context, appID, key string) (*database.License, error) {
	return s.store.GetLicense(ctx, appID, key)
}

// List returns all of an application's licenses
func (s *Service) List(ctx context.Context, appID string) ([]*database.License, error) {
	return s.store.ListLicenses(ctx, appID)
}

// Delete removes a key from the ledger
func (s *Service) Delete(ctx context.Context, appID, key string) error {
	return s.store.DeleteLicense(ctx, appID, key)
}

// Ban marks a key banned and revokes the grant it produced
func (s *Service) Ban(ctx context.Context, appID, key, reason string) error {
	if err := s.store.BanLicense(ctx, appID, key, reason); err != nil {
		return err
	}
	s.logger.Info("license banned", "app_id", appID, "key", key)
	return nil
}

// Unban lifts a ban, restoring the consumer's grant if the key was used
func (s *Service) Unban(ctx context.Context, appID, key string) error {
	if err := s.store.UnbanLicense(ctx, appID, key); err != nil {
		return err
	}
	s.logger.Info("license unbanned", "app_id", appID, "key", key)
	return nil
}
