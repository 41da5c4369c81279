// Package subscription tracks plans and per-user grants, including the
// pause lifecycle that freezes remaining time.
package subscription

import (
	"context"
	"time"

	"hexauth-server/internal/database"
	"hexauth-server/internal/logging"
)

// Store is the persistence surface the tracker needs. *database.Repository
// satisfies it.
type Store interface {
	CreateSubscription(ctx context.Context, appID, name, level string) (*database.Subscription, error)
	ListSubscriptions(ctx context.Context, appID string) ([]*database.Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID string) ([]*database.UserSubscription, error)
	PauseUserSubscription(ctx context.Context, appID, grantID string) (bool, error)
	UnpauseUserSubscription(ctx context.Context, appID, grantID string) (bool, error)
	DeleteUserSubscription(ctx context.Context, appID, grantID string) error
}

// Service coordinates subscription state
type Service struct {
	store  Store
	logger *logging.Logger
}

// NewService creates a subscription tracker
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: logging.Default().WithComponent("subscription"),
	}
}

// CreatePlan defines a plan for an application
func (s *Service) CreatePlan(ctx context.Context, appID, name, level string) (*database.Subscription, error) {
	return s.store.CreateSubscription(ctx, appID, name, level)
}

// ListPlans returns an application's plans
func (s *Service) ListPlans(ctx context.Context, appID string) ([]*database.Subscription, error) {
	return s.store.ListSubscriptions(ctx, appID)
}

// ListForUser returns all of a user's grants, paused and expired included
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*database.UserSubscription, error) {
	return s.store.ListUserSubscriptions(ctx, userID)
}

// ActiveForUser returns the grants that currently allow access
func (s *Service) ActiveForUser(ctx context.Context, userID string) ([]*database.UserSubscription, error) {
	grants, err := s.store.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]*database.UserSubscription, 0, len(grants))
	for _, g := range grants {
		if g.Active(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

// HasPausedGrant reports whether any of the user's grants is paused
func (s *Service) HasPausedGrant(ctx context.Context, userID string) (bool, error) {
	grants, err := s.store.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if g.IsPaused {
			return true, nil
		}
	}
	return false, nil
}

// Pause freezes a live grant belonging to the application. Pausing an
// already paused or expired grant changes nothing.
func (s *Service) Pause(ctx context.Context, appID, grantID string) (bool, error) {
	paused, err := s.store.PauseUserSubscription(ctx, appID, grantID)
	if err != nil {
		return false, err
	}
	if paused {
		s.logger.Info("subscription paused", "app_id", appID, "grant_id", grantID)
	}
	return paused, nil
}

// Unpause resumes a grant with the frozen remainder starting from now
func (s *Service) Unpause(ctx context.Context, appID, grantID string) (bool, error) {
	resumed, err := s.store.UnpauseUserSubscription(ctx, appID, grantID)
	if err != nil {
		return false, err
	}
	if resumed {
		s.logger.Info("subscription resumed", "app_id", appID, "grant_id", grantID)
	}
	return resumed, nil
}

// Revoke removes a grant belonging to the application
func (s *Service) Revoke(ctx context.Context, appID, grantID string) error {
	return s.store.DeleteUserSubscription(ctx, appID, grantID)
}

// Remaining reports how much entitlement a grant has left: the frozen
// snapshot while paused, otherwise the live countdown.
func Remaining(g *database.UserSubscription, now time.Time) time.Duration {
	if g.IsPaused {
		return time.Duration(g.PausedRemainingSecs) * time.Second
	}
	if d := g.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
