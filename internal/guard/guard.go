// Package guard enforces the abuse controls consulted before any client
// flow runs: blacklists, VPN detection, leaked-password screening, rate
// limits and hardware id binding. External lookups and shared counters
// fail open so an outage never locks out legitimate users.
package guard

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hexauth-server/config"
	"hexauth-server/internal/cache"
	"hexauth-server/internal/logging"
)

// Store is the persisted lookup surface the guard needs
type Store interface {
	IsBlacklisted(ctx context.Context, appID, ip, hwid string) (bool, error)
	IsWhitelisted(ctx context.Context, appID, ip string) (bool, error)
}

// Counters is the shared-state surface backing rate limits and the VPN
// lookup cache. *cache.CacheService satisfies it.
type Counters interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Guard evaluates abuse controls for client requests
type Guard struct {
	store    Store
	counters Counters
	cfg      config.GuardConfig
	rlCfg    config.RateLimitConfig
	client   *http.Client
	logger   *logging.Logger
}

// New creates a guard with its own HTTP client for external lookups
func New(store Store, counters Counters, cfg config.GuardConfig, rlCfg config.RateLimitConfig) *Guard {
	timeout := cfg.VPNLookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Guard{
		store:    store,
		counters: counters,
		cfg:      cfg,
		rlCfg:    rlCfg,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Default().WithComponent("guard"),
	}
}

// IsBlacklisted reports whether the client IP or HWID is blocked for the
// application
func (g *Guard) IsBlacklisted(ctx context.Context, appID, ip, hwid string) (bool, error) {
	return g.store.IsBlacklisted(ctx, appID, ip, hwid)
}

// vpnLookupResult mirrors the fields the lookup endpoint returns
type vpnLookupResult struct {
	Status  string `json:"status"`
	Proxy   bool   `json:"proxy"`
	Hosting bool   `json:"hosting"`
}

// IsVPN reports whether the IP belongs to a proxy or hosting range.
// Results are cached for an hour; whitelisted IPs skip the lookup; any
// lookup failure reports false.
func (g *Guard) IsVPN(ctx context.Context, appID, ip string) bool {
	if !g.cfg.VPNLookupEnabled || ip == "" {
		return false
	}

	whitelisted, err := g.store.IsWhitelisted(ctx, appID, ip)
	if err != nil {
		g.logger.Warn("whitelist check failed", "error", err.Error())
	} else if whitelisted {
		return false
	}

	if g.counters != nil {
		if cached, err := g.counters.Get(ctx, cache.VPNLookupKey(ip)); err == nil {
			return cached == "1"
		}
	}

	verdict := g.lookupVPN(ctx, ip)

	if g.counters != nil {
		val := "0"
		if verdict {
			val = "1"
		}
		ttl := g.cfg.VPNCacheTTL
		if ttl <= 0 {
			ttl = cache.DefaultVPNLookupTTL
		}
		if err := g.counters.Set(ctx, cache.VPNLookupKey(ip), val, ttl); err != nil {
			g.logger.Warn("vpn cache write failed", "error", err.Error())
		}
	}

	return verdict
}

func (g *Guard) lookupVPN(ctx context.Context, ip string) bool {
	url := fmt.Sprintf("%s/%s?fields=status,proxy,hosting", strings.TrimRight(g.cfg.VPNLookupURL, "/"), ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("vpn lookup failed", "ip", ip, "error", err.Error())
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result vpnLookupResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	if result.Status != "success" {
		return false
	}

	return result.Proxy || result.Hosting
}

// IsPasswordBreached checks the password against the k-anonymity range
// API: only the first five hex characters of the SHA-1 leave the server.
// Any failure reports false.
func (g *Guard) IsPasswordBreached(ctx context.Context, password string) bool {
	if !g.cfg.BreachLookupEnabled || password == "" {
		return false
	}

	sum := fmt.Sprintf("%X", sha1.Sum([]byte(password)))
	prefix, suffix := sum[:5], sum[5:]

	url := strings.TrimRight(g.cfg.BreachLookupURL, "/") + "/" + prefix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	timeout := g.cfg.BreachLookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		g.logger.Warn("breach lookup failed", "error", err.Error())
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, suffix); ok && strings.HasPrefix(rest, ":") {
			return true
		}
	}
	return false
}

// RateLimited reports whether the client has exceeded the fixed window
// for the endpoint group. Counter failures report false.
func (g *Guard) RateLimited(ctx context.Context, group, ip string) bool {
	if !g.rlCfg.Enabled || g.counters == nil || ip == "" {
		return false
	}

	window := g.rlCfg.Window
	if window <= 0 {
		window = time.Hour
	}

	count, err := g.counters.IncrementWindow(ctx, cache.RateWindowKey(group, ip), window)
	if err != nil {
		return false
	}
	return count > int64(g.rlCfg.Requests)
}

// HWIDMatches applies the binding policy: an unbound stored id matches
// anything, and an empty presented id matches only when binding is not
// forced.
func HWIDMatches(stored, presented string, force bool) bool {
	if stored == "" {
		return true
	}
	if presented == "" {
		return !force
	}
	return stored == presented
}
