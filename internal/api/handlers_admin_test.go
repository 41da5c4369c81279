package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hexauth-server/internal/database"
)

const testPassword = "Str0ng#pass"

// adminReq sends a JSON request with a bearer token
func (e *testEnv) adminReq(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

// ownerToken registers an account and logs it in
func (e *testEnv) ownerToken(t *testing.T, username string) (string, *database.Account) {
	t.Helper()
	w := e.adminReq("POST", "/api/auth/register", "",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"`+testPassword+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, w.Code, w.Body.String())
	}
	w = e.adminReq("POST", "/api/auth/login", "",
		`{"username":"`+username+`","password":"`+testPassword+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["access_token"].(string)
	if token == "" {
		t.Fatalf("no access token for %s", username)
	}
	return token, e.store.accts[username]
}

func TestGrantAdminOpsStayInTenant(t *testing.T) {
	env := newTestEnv(t)
	tokenA, acctA := env.ownerToken(t, "owner-a")
	tokenB, acctB := env.ownerToken(t, "owner-b")

	// both owners run an app of the same name
	appA := env.store.seedApp(acctA.OwnerID, "victim")
	env.store.seedApp(acctB.OwnerID, "victim")

	grant := &database.UserSubscription{
		ID: "grant-1", UserID: "user-1", ApplicationID: appA.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	env.store.grants["user-1"] = []*database.UserSubscription{grant}

	// owner B presenting A's grant id hits their own app and misses
	w := env.adminReq("POST", "/api/admin/apps/victim/subscriptions/grant-1/pause", tokenB, "")
	if w.Code != http.StatusConflict {
		t.Errorf("cross-tenant pause = %d, want 409", w.Code)
	}
	if grant.IsPaused {
		t.Fatal("cross-tenant pause touched another tenant's grant")
	}
	w = env.adminReq("DELETE", "/api/admin/apps/victim/subscriptions/grant-1", tokenB, "")
	if w.Code != http.StatusOK {
		t.Errorf("revoke = %d, want 200", w.Code)
	}
	if env.store.findGrant("grant-1") == nil {
		t.Fatal("cross-tenant revoke deleted another tenant's grant")
	}

	// the owning tenant can pause it
	w = env.adminReq("POST", "/api/admin/apps/victim/subscriptions/grant-1/pause", tokenA, "")
	if w.Code != http.StatusOK {
		t.Fatalf("own-tenant pause = %d: %s", w.Code, w.Body.String())
	}
	if !grant.IsPaused {
		t.Error("grant not paused")
	}
}

func TestPurgeSessionsNeedsAdminRole(t *testing.T) {
	env := newTestEnv(t)
	token, acct := env.ownerToken(t, "plainowner")

	w := env.adminReq("DELETE", "/api/admin/sessions/expired", token, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("plain owner purge = %d, want 403", w.Code)
	}

	// promote and log in again for a token carrying the new role
	acct.Role = "admin"
	w = env.adminReq("POST", "/api/auth/login", "",
		`{"username":"plainowner","password":"`+testPassword+`"}`)
	adminToken, _ := decode(t, w)["access_token"].(string)

	w = env.adminReq("DELETE", "/api/admin/sessions/expired", adminToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("admin purge = %d: %s", w.Code, w.Body.String())
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.ownerToken(t, "rotator")

	w := env.adminReq("PUT", "/api/admin/me/password", token,
		`{"current_password":"wrong-guess1A","new_password":"N3w#password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong current password = %d, want 401", w.Code)
	}

	w = env.adminReq("PUT", "/api/admin/me/password", token,
		`{"current_password":"`+testPassword+`","new_password":"N3w#password"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("change password = %d: %s", w.Code, w.Body.String())
	}

	w = env.adminReq("POST", "/api/auth/login", "",
		`{"username":"rotator","password":"`+testPassword+`"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old password still accepted: %d", w.Code)
	}
	w = env.adminReq("POST", "/api/auth/login", "",
		`{"username":"rotator","password":"N3w#password"}`)
	if w.Code != http.StatusOK {
		t.Errorf("new password rejected: %d %s", w.Code, w.Body.String())
	}
}
