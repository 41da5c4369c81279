package guard

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"hexauth-server/config"
)

type fakeStore struct {
	blacklisted bool
	whitelisted bool
}

func (s *fakeStore) IsBlacklisted(ctx context.Context, appID, ip, hwid string) (bool, error) {
	return s.blacklisted, nil
}

func (s *fakeStore) IsWhitelisted(ctx context.Context, appID, ip string) (bool, error) {
	return s.whitelisted, nil
}

type fakeCounters struct {
	values map[string]string
	counts map[string]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{values: map[string]string{}, counts: map[string]int64{}}
}

func (c *fakeCounters) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (c *fakeCounters) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = fmt.Sprint(value)
	return nil
}

func (c *fakeCounters) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.counts[key]++
	return c.counts[key], nil
}

func TestIsVPNDetectsProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","proxy":true,"hosting":false}`)
	}))
	defer srv.Close()

	g := New(&fakeStore{}, newFakeCounters(), config.GuardConfig{
		VPNLookupEnabled: true,
		VPNLookupURL:     srv.URL,
	}, config.RateLimitConfig{})

	if !g.IsVPN(context.Background(), "app-1", "1.2.3.4") {
		t.Error("expected proxy IP to be flagged")
	}
}

func TestIsVPNCachesVerdict(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status":"success","proxy":true,"hosting":false}`)
	}))
	defer srv.Close()

	counters := newFakeCounters()
	g := New(&fakeStore{}, counters, config.GuardConfig{
		VPNLookupEnabled: true,
		VPNLookupURL:     srv.URL,
	}, config.RateLimitConfig{})

	ctx := context.Background()
	g.IsVPN(ctx, "app-1", "1.2.3.4")
	if !g.IsVPN(ctx, "app-1", "1.2.3.4") {
		t.Error("expected cached verdict to be flagged")
	}
	if calls != 1 {
		t.Errorf("lookup calls = %d, want 1", calls)
	}
}

func TestIsVPNWhitelistSkipsLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("lookup should not run for whitelisted IP")
	}))
	defer srv.Close()

	g := New(&fakeStore{whitelisted: true}, newFakeCounters(), config.GuardConfig{
		VPNLookupEnabled: true,
		VPNLookupURL:     srv.URL,
	}, config.RateLimitConfig{})

	if g.IsVPN(context.Background(), "app-1", "1.2.3.4") {
		t.Error("whitelisted IP must never be flagged")
	}
}

func TestIsVPNFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := New(&fakeStore{}, newFakeCounters(), config.GuardConfig{
		VPNLookupEnabled: true,
		VPNLookupURL:     srv.URL,
	}, config.RateLimitConfig{})

	if g.IsVPN(context.Background(), "app-1", "1.2.3.4") {
		t.Error("lookup failure must not block the client")
	}
}

func TestIsVPNDisabled(t *testing.T) {
	g := New(&fakeStore{}, nil, config.GuardConfig{}, config.RateLimitConfig{})
	if g.IsVPN(context.Background(), "app-1", "1.2.3.4") {
		t.Error("disabled lookup must report false")
	}
}

func TestIsPasswordBreached(t *testing.T) {
	const password = "hunter2"
	sum := fmt.Sprintf("%X", sha1.Sum([]byte(password)))
	suffix := sum[5:]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "0000000000000000000000000000000000F:3\r\n%s:1337\r\n", suffix)
	}))
	defer srv.Close()

	g := New(&fakeStore{}, nil, config.GuardConfig{
		BreachLookupEnabled: true,
		BreachLookupURL:     srv.URL,
	}, config.RateLimitConfig{})

	ctx := context.Background()
	if !g.IsPasswordBreached(ctx, password) {
		t.Error("expected known password to be reported breached")
	}
	if g.IsPasswordBreached(ctx, "a-password-not-in-the-range") {
		t.Error("unlisted password must not be reported breached")
	}
}

func TestIsPasswordBreachedFailsOpen(t *testing.T) {
	g := New(&fakeStore{}, nil, config.GuardConfig{
		BreachLookupEnabled: true,
		BreachLookupURL:     "http://127.0.0.1:1",
		BreachLookupTimeout: 100 * time.Millisecond,
	}, config.RateLimitConfig{})

	if g.IsPasswordBreached(context.Background(), "whatever") {
		t.Error("lookup failure must not flag the password")
	}
}

func TestRateLimited(t *testing.T) {
	g := New(&fakeStore{}, newFakeCounters(), config.GuardConfig{}, config.RateLimitConfig{
		Enabled:  true,
		Requests: 3,
		Window:   time.Hour,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if g.RateLimited(ctx, "client", "1.2.3.4") {
			t.Fatalf("request %d should be inside the window", i+1)
		}
	}
	if !g.RateLimited(ctx, "client", "1.2.3.4") {
		t.Error("request over the limit should be rejected")
	}
	if g.RateLimited(ctx, "client", "5.6.7.8") {
		t.Error("a different IP has its own window")
	}
}

func TestRateLimitedDisabled(t *testing.T) {
	g := New(&fakeStore{}, newFakeCounters(), config.GuardConfig{}, config.RateLimitConfig{})
	if g.RateLimited(context.Background(), "client", "1.2.3.4") {
		t.Error("disabled limiter must never reject")
	}
}

func TestHWIDMatches(t *testing.T) {
	cases := []struct {
		name      string
		stored    string
		presented string
		force     bool
		want      bool
	}{
		{"unbound matches anything", "", "abc", true, true},
		{"exact match", "abc", "abc", true, true},
		{"mismatch", "abc", "xyz", false, false},
		{"empty presented, forced", "abc", "", true, false},
		{"empty presented, not forced", "abc", "", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HWIDMatches(tc.stored, tc.presented, tc.force); got != tc.want {
				t.Errorf("HWIDMatches(%q, %q, %v) = %v, want %v", tc.stored, tc.presented, tc.force, got, tc.want)
			}
		})
	}
}
