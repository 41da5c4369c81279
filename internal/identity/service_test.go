package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"hexauth-server/internal/database"
)

type fakeUserStore struct {
	users map[string]*database.AppUser
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*database.AppUser{}}
}

func (s *fakeUserStore) CreateAppUser(ctx context.Context, appID, username, passwordHash string, email, hwid, ip *string) (*database.AppUser, error) {
	if _, ok := s.users[username]; ok {
		return nil, database.ErrDuplicate
	}
	u := &database.AppUser{
		ID:            "u-" + username,
		ApplicationID: appID,
		Username:      username,
		PasswordHash:  passwordHash,
		Email:         email,
		HWID:          hwid,
		IPAddress:     ip,
	}
	s.users[username] = u
	return u, nil
}

func (s *fakeUserStore) GetAppUser(ctx context.Context, appID, username string) (*database.AppUser, error) {
	return s.users[username], nil
}

func (s *fakeUserStore) TouchUserLogin(ctx context.Context, userID string, ip, hwid *string) error {
	return nil
}

func (s *fakeUserStore) SetUserHWID(ctx context.Context, userID, hwid string) error {
	for _, u := range s.users {
		if u.ID == userID {
			u.HWID = &hwid
		}
	}
	return nil
}

func (s *fakeUserStore) RenameAppUser(ctx context.Context, userID, newUsername string) error {
	if _, ok := s.users[newUsername]; ok {
		return database.ErrDuplicate
	}
	for name, u := range s.users {
		if u.ID == userID {
			delete(s.users, name)
			u.Username = newUsername
			s.users[newUsername] = u
			return nil
		}
	}
	return nil
}

func (s *fakeUserStore) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	return nil
}

func (s *fakeUserStore) BanAppUser(ctx context.Context, userID, reason string) error {
	for _, u := range s.users {
		if u.ID == userID {
			u.Banned = true
			u.BanReason = &reason
		}
	}
	return nil
}

func testApp() *database.Application {
	return &database.Application{ID: "app-1", MinUsernameLength: 3}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.Register(ctx, testApp(), "alice", "s3cret", nil, nil, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}

	got, err := svc.Authenticate(ctx, "app-1", "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("username = %q", got.Username)
	}

	if _, err := svc.Authenticate(ctx, "app-1", "alice", "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("wrong password = %v, want ErrPasswordMismatch", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, testApp(), "alice", "pw", nil, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, testApp(), "alice", "pw", nil, nil, nil); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate = %v, want ErrUsernameTaken", err)
	}
}

func TestRegisterShortUsername(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, err := svc.Register(context.Background(), testApp(), "al", "pw", nil, nil, nil); !errors.Is(err, ErrUsernameTooShort) {
		t.Errorf("short username = %v, want ErrUsernameTooShort", err)
	}
}

func TestAuthenticateBannedUserSeesBan(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testApp(), "alice", "pw", nil, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Ban(ctx, "app-1", "alice", "cheating"); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	// Even the wrong password reports the ban, not the mismatch
	if _, err := svc.Authenticate(ctx, "app-1", "alice", "wrong"); !errors.Is(err, ErrUserBanned) {
		t.Errorf("banned auth = %v, want ErrUserBanned", err)
	}
}

func TestAuthenticateDuringResetCooldown(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testApp(), "alice", "pw", nil, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	until := time.Now().Add(24 * time.Hour)
	store.users["alice"].CooldownUntil = &until
	if _, err := svc.Authenticate(ctx, "app-1", "alice", "pw"); !errors.Is(err, ErrUserOnCooldown) {
		t.Errorf("auth during cooldown = %v, want ErrUserOnCooldown", err)
	}

	lapsed := time.Now().Add(-time.Minute)
	store.users["alice"].CooldownUntil = &lapsed
	if _, err := svc.Authenticate(ctx, "app-1", "alice", "pw"); err != nil {
		t.Errorf("auth after cooldown lapsed = %v, want nil", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, err := svc.Authenticate(context.Background(), "app-1", "ghost", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestChangeUsername(t *testing.T) {
	store := newFakeUserStore()
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testApp(), "alice", "pw", nil, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, testApp(), "bobby", "pw", nil, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.ChangeUsername(ctx, testApp(), "alice", "alicia"); err != nil {
		t.Fatalf("ChangeUsername: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "app-1", "alicia", "pw"); err != nil {
		t.Errorf("auth under new name failed: %v", err)
	}

	if err := svc.ChangeUsername(ctx, testApp(), "alicia", "bobby"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("rename onto taken name = %v, want ErrUsernameTaken", err)
	}
	if err := svc.ChangeUsername(ctx, testApp(), "alicia", "ab"); !errors.Is(err, ErrUsernameTooShort) {
		t.Errorf("rename to short name = %v, want ErrUsernameTooShort", err)
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("open sesame")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "open sesame") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "open says me") {
		t.Error("wrong password accepted")
	}
}
