package subscription

import (
	"context"
	"testing"
	"time"

	"hexauth-server/internal/database"
)

type fakeSubStore struct {
	grants map[string]*database.UserSubscription
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{grants: map[string]*database.UserSubscription{}}
}

func (s *fakeSubStore) CreateSubscription(ctx context.Context, appID, name, level string) (*database.Subscription, error) {
	return &database.Subscription{ApplicationID: appID, Name: name, Level: level}, nil
}

func (s *fakeSubStore) ListSubscriptions(ctx context.Context, appID string) ([]*database.Subscription, error) {
	return nil, nil
}

func (s *fakeSubStore) ListUserSubscriptions(ctx context.Context, userID string) ([]*database.UserSubscription, error) {
	var out []*database.UserSubscription
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeSubStore) PauseUserSubscription(ctx context.Context, appID, grantID string) (bool, error) {
	g, ok := s.grants[grantID]
	if !ok || g.ApplicationID != appID || g.IsPaused || !time.Now().Before(g.ExpiresAt) {
		return false, nil
	}
	g.IsPaused = true
	g.PausedRemainingSecs = int64(time.Until(g.ExpiresAt) / time.Second)
	return true, nil
}

func (s *fakeSubStore) UnpauseUserSubscription(ctx context.Context, appID, grantID string) (bool, error) {
	g, ok := s.grants[grantID]
	if !ok || g.ApplicationID != appID || !g.IsPaused {
		return false, nil
	}
	g.IsPaused = false
	g.ExpiresAt = time.Now().Add(time.Duration(g.PausedRemainingSecs) * time.Second)
	g.PausedRemainingSecs = 0
	return true, nil
}

func (s *fakeSubStore) DeleteUserSubscription(ctx context.Context, appID, grantID string) error {
	if g, ok := s.grants[grantID]; ok && g.ApplicationID == appID {
		delete(s.grants, grantID)
	}
	return nil
}

func grant(id, userID string, expiresAt time.Time) *database.UserSubscription {
	return &database.UserSubscription{ID: id, UserID: userID, ApplicationID: "app-1", ExpiresAt: expiresAt}
}

func TestActiveForUserFiltersPausedAndExpired(t *testing.T) {
	store := newFakeSubStore()
	now := time.Now()
	store.grants["live"] = grant("live", "u1", now.Add(time.Hour))
	store.grants["expired"] = grant("expired", "u1", now.Add(-time.Hour))
	store.grants["paused"] = grant("paused", "u1", now.Add(time.Hour))
	store.grants["paused"].IsPaused = true
	store.grants["other"] = grant("other", "u2", now.Add(time.Hour))

	svc := NewService(store)
	active, err := svc.ActiveForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ActiveForUser: %v", err)
	}
	if len(active) != 1 || active[0].ID != "live" {
		t.Fatalf("active = %+v, want only the live grant", active)
	}
}

func TestPauseSnapshotsRemaining(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = grant("g1", "u1", time.Now().Add(2*time.Hour))

	svc := NewService(store)
	ctx := context.Background()

	paused, err := svc.Pause(ctx, "app-1", "g1")
	if err != nil || !paused {
		t.Fatalf("Pause = (%v, %v), want (true, nil)", paused, err)
	}

	g := store.grants["g1"]
	if !g.IsPaused {
		t.Fatal("grant not marked paused")
	}
	if g.PausedRemainingSecs < 7100 || g.PausedRemainingSecs > 7200 {
		t.Errorf("snapshot = %ds, want about 7200s", g.PausedRemainingSecs)
	}
}

func TestDoublePauseKeepsSnapshot(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = grant("g1", "u1", time.Now().Add(time.Hour))

	svc := NewService(store)
	ctx := context.Background()

	svc.Pause(ctx, "app-1", "g1")
	first := store.grants["g1"].PausedRemainingSecs

	paused, err := svc.Pause(ctx, "app-1", "g1")
	if err != nil {
		t.Fatalf("second Pause: %v", err)
	}
	if paused {
		t.Error("second pause should be a no-op")
	}
	if store.grants["g1"].PausedRemainingSecs != first {
		t.Error("second pause overwrote the snapshot")
	}
}

func TestPauseExpiredGrantIsNoOp(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = grant("g1", "u1", time.Now().Add(-time.Hour))

	svc := NewService(store)
	paused, err := svc.Pause(context.Background(), "app-1", "g1")
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused {
		t.Error("an expired grant must not be pausable")
	}
	if store.grants["g1"].IsPaused {
		t.Error("expired grant ended up paused")
	}
}

func TestGrantOpsScopedToApplication(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = grant("g1", "u1", time.Now().Add(time.Hour))

	svc := NewService(store)
	ctx := context.Background()

	if paused, err := svc.Pause(ctx, "app-2", "g1"); err != nil || paused {
		t.Errorf("Pause from another application = (%v, %v), want (false, nil)", paused, err)
	}
	if err := svc.Revoke(ctx, "app-2", "g1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if store.grants["g1"] == nil {
		t.Fatal("grant revoked by another application")
	}

	svc.Pause(ctx, "app-1", "g1")
	if resumed, err := svc.Unpause(ctx, "app-2", "g1"); err != nil || resumed {
		t.Errorf("Unpause from another application = (%v, %v), want (false, nil)", resumed, err)
	}
}

func TestUnpauseRestoresRemaining(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = grant("g1", "u1", time.Now().Add(-time.Hour))
	store.grants["g1"].IsPaused = true
	store.grants["g1"].PausedRemainingSecs = 3600

	svc := NewService(store)
	resumed, err := svc.Unpause(context.Background(), "app-1", "g1")
	if err != nil || !resumed {
		t.Fatalf("Unpause = (%v, %v), want (true, nil)", resumed, err)
	}

	g := store.grants["g1"]
	if g.IsPaused {
		t.Fatal("grant still paused")
	}
	want := time.Now().Add(time.Hour)
	if diff := g.ExpiresAt.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry = %v, want about %v", g.ExpiresAt, want)
	}
}

func TestUnpauseActiveGrantIsNoOp(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = grant("g1", "u1", time.Now().Add(time.Hour))

	svc := NewService(store)
	resumed, err := svc.Unpause(context.Background(), "app-1", "g1")
	if err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	if resumed {
		t.Error("unpausing a running grant should be a no-op")
	}
}

func TestRemaining(t *testing.T) {
	now := time.Now()

	running := &database.UserSubscription{ExpiresAt: now.Add(30 * time.Minute)}
	if d := Remaining(running, now); d != 30*time.Minute {
		t.Errorf("running remaining = %v", d)
	}

	expired := &database.UserSubscription{ExpiresAt: now.Add(-time.Minute)}
	if d := Remaining(expired, now); d != 0 {
		t.Errorf("expired remaining = %v", d)
	}

	paused := &database.UserSubscription{IsPaused: true, PausedRemainingSecs: 90, ExpiresAt: now.Add(-time.Hour)}
	if d := Remaining(paused, now); d != 90*time.Second {
		t.Errorf("paused remaining = %v", d)
	}
}

func TestHasPausedGrant(t *testing.T) {
	store := newFakeSubStore()
	store.grants["g1"] = &database.UserSubscription{ID: "g1", UserID: "u1", ApplicationID: "app-1", IsPaused: true}

	svc := NewService(store)
	has, err := svc.HasPausedGrant(context.Background(), "u1")
	if err != nil || !has {
		t.Fatalf("HasPausedGrant = (%v, %v), want (true, nil)", has, err)
	}
	has, err = svc.HasPausedGrant(context.Background(), "u2")
	if err != nil || has {
		t.Fatalf("HasPausedGrant for other user = (%v, %v), want (false, nil)", has, err)
	}
}
