package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hexauth-server/internal/database"
)

type fakeAccountStore struct {
	byUsername map[string]*database.Account
	byOwnerID  map[string]*database.Account
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		byUsername: map[string]*database.Account{},
		byOwnerID:  map[string]*database.Account{},
	}
}

func (s *fakeAccountStore) CreateAccount(ctx context.Context, username, email, passwordHash, ownerID string) (*database.Account, error) {
	if _, ok := s.byUsername[username]; ok {
		return nil, database.ErrDuplicate
	}
	if _, ok := s.byOwnerID[ownerID]; ok {
		return nil, database.ErrDuplicate
	}
	acct := &database.Account{
		ID:           "acct-" + username,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		OwnerID:      ownerID,
		Role:         "developer",
		CreatedAt:    time.Now(),
	}
	s.byUsername[username] = acct
	s.byOwnerID[ownerID] = acct
	return acct, nil
}

func (s *fakeAccountStore) GetAccountByUsername(ctx context.Context, username string) (*database.Account, error) {
	return s.byUsername[username], nil
}

func (s *fakeAccountStore) GetAccountByID(ctx context.Context, id string) (*database.Account, error) {
	for _, a := range s.byUsername {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeAccountStore) GetAccountByOwnerID(ctx context.Context, ownerID string) (*database.Account, error) {
	return s.byOwnerID[ownerID], nil
}

func (s *fakeAccountStore) SetAccountPassword(ctx context.Context, id, passwordHash string) error {
	for _, a := range s.byUsername {
		if a.ID == id {
			a.PasswordHash = passwordHash
		}
	}
	return nil
}

func (s *fakeAccountStore) TouchAccountLogin(ctx context.Context, id, ip string) error {
	return nil
}

func newTestService() (*Service, *fakeAccountStore) {
	store := newFakeAccountStore()
	jwt := NewJWTManager("test-secret", time.Hour)
	// cost 4 keeps the tests fast
	passwords := NewPasswordManager(4, 8)
	return NewService(store, jwt, passwords), store
}

func TestRegisterIssuesOwnerID(t *testing.T) {
	svc, _ := newTestService()

	acct, err := svc.Register(context.Background(), RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "Str0ng-pass",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(acct.OwnerID) != 10 {
		t.Errorf("owner id length = %d, want 10", len(acct.OwnerID))
	}
	for _, c := range acct.OwnerID {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("owner id not hex: %q", acct.OwnerID)
		}
	}
	if acct.PasswordHash == "Str0ng-pass" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "alllowercase",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak password = %v, want ErrWeakPassword", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := RegisterRequest{Username: "dev1", Email: "dev1@example.com", Password: "Str0ng-pass"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate = %v, want ErrAccountExists", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "Str0ng-pass",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp, err := svc.Login(ctx, LoginRequest{Username: "dev1", Password: "Str0ng-pass"}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Errorf("unexpected response: %+v", resp)
	}

	claims, err := NewJWTManager("test-secret", time.Hour).ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.Username != "dev1" || claims.OwnerID != resp.Account.OwnerID {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "Str0ng-pass",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, LoginRequest{Username: "dev1", Password: "wrong"}, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Username: "ghost", Password: "x"}, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginBannedAccount(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "Str0ng-pass",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store.byUsername["dev1"].IsBanned = true

	if _, err := svc.Login(ctx, LoginRequest{Username: "dev1", Password: "Str0ng-pass"}, ""); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("banned login = %v, want ErrAccountBanned", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	acct, err := svc.Register(ctx, RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "Str0ng-pass",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	claims := &OwnerClaims{AccountID: acct.ID, Username: acct.Username, OwnerID: acct.OwnerID}

	if err := svc.ChangePassword(ctx, claims, ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "N3w-strong",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong current password = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, claims, ChangePasswordRequest{
		CurrentPassword: "Str0ng-pass",
		NewPassword:     "weakweakweak",
	}); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak new password = %v, want ErrWeakPassword", err)
	}

	if err := svc.ChangePassword(ctx, claims, ChangePasswordRequest{
		CurrentPassword: "Str0ng-pass",
		NewPassword:     "N3w-strong",
	}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.Login(ctx, LoginRequest{Username: "dev1", Password: "Str0ng-pass"}, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted after change")
	}
	if _, err := svc.Login(ctx, LoginRequest{Username: "dev1", Password: "N3w-strong"}, ""); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestRegisterRetriesTakenOwnerID(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	acct, err := svc.Register(ctx, RegisterRequest{
		Username: "dev1",
		Email:    "dev1@example.com",
		Password: "Str0ng-pass",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A second registration must never be handed an owner id that is
	// already taken
	second, err := svc.Register(ctx, RegisterRequest{
		Username: "dev2",
		Email:    "dev2@example.com",
		Password: "Str0ng-pass",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if second.OwnerID == acct.OwnerID {
		t.Error("duplicate owner id issued")
	}
	if store.byOwnerID[second.OwnerID] == nil {
		t.Error("second account not indexed by owner id")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).GenerateAccessToken(OwnerClaims{AccountID: "a"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := NewJWTManager("secret-b", time.Hour).ValidateAccessToken(token); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}

func TestPasswordStrength(t *testing.T) {
	pm := NewPasswordManager(4, 8)
	cases := []struct {
		password string
		ok       bool
	}{
		{"Str0ng-pass", true},
		{"sh0rt", false},
		{"alllowercase", false},
		{"UPPERandlower1", true},
	}
	for _, tc := range cases {
		err := pm.ValidatePasswordStrength(tc.password)
		if (err == nil) != tc.ok {
			t.Errorf("ValidatePasswordStrength(%q) = %v, want ok=%v", tc.password, err, tc.ok)
		}
	}
}
