// Package webhook delivers tenant notifications to Discord-compatible
// webhook URLs and proxies client calls to tenant-registered endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hexauth-server/internal/database"
	"hexauth-server/internal/events"
	"hexauth-server/internal/logging"
)

// embed colors per event kind
const (
	colorInfo  = 0x00FF00
	colorError = 0xFF0000
	colorWarn  = 0xFFA500
)

// maxProxyResponse caps the body relayed back from a proxied endpoint
const maxProxyResponse = 1 << 20

// Sender pushes notifications to Discord-compatible webhook URLs
type Sender struct {
	client *http.Client
	logger *logging.Logger
}

// NewSender creates a webhook sender
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logging.Default().WithComponent("webhook"),
	}
}

// Notify posts a Discord-style embed to the URL. Delivery failures are
// logged and swallowed: a dead tenant webhook must not fail the client
// request that triggered it.
func (s *Sender) Notify(ctx context.Context, url, title, description string, color int) {
	if url == "" {
		return
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": description,
				"color":       color,
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal webhook payload", "error", err.Error())
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed", "error", err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook rejected", "status", resp.StatusCode)
	}
}

// Proxy relays a client call to a tenant-registered endpoint and returns
// the response body. Params are appended verbatim to the stored URL.
func (s *Sender) Proxy(ctx context.Context, endpoint *database.WebhookEndpoint, params string) (string, error) {
	url := endpoint.URL
	if params != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + params
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build proxy request: %w", err)
	}
	if endpoint.UserAgent != nil && *endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", *endpoint.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyResponse))
	if err != nil {
		return "", fmt.Errorf("failed to read proxy response: %w", err)
	}
	return string(body), nil
}

// AppResolver looks up the tenant an event belongs to
type AppResolver interface {
	GetApplication(ctx context.Context, ownerID, name string) (*database.Application, error)
}

// AttachBus forwards activity events to the owning tenant's webhook URL
func (s *Sender) AttachBus(bus *events.EventBus, resolver AppResolver) {
	bus.SubscribeAll(func(e events.Event) {
		if e.OwnerID == "" || e.AppName == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		app, err := resolver.GetApplication(ctx, e.OwnerID, e.AppName)
		if err != nil || app == nil || app.WebhookURL == nil || *app.WebhookURL == "" {
			return
		}

		title, desc, color := describe(e)
		s.Notify(ctx, *app.WebhookURL, title, desc, color)
	})
}

func describe(e events.Event) (title, description string, color int) {
	switch e.Type {
	case events.EventUserRegistered:
		return "New user", fmt.Sprintf("%v registered", e.Data["username"]), colorInfo
	case events.EventUserLoggedIn:
		return "Login", fmt.Sprintf("%v logged in", e.Data["credential"]), colorInfo
	case events.EventLicenseRedeemed:
		return "License redeemed", fmt.Sprintf("%v activated plan %v", e.Data["credential"], e.Data["plan"]), colorInfo
	case events.EventUserBanned:
		return "User banned", fmt.Sprintf("%v banned: %v", e.Data["username"], e.Data["reason"]), colorError
	case events.EventLogAppended:
		return "Client log", fmt.Sprintf("%v: %v", e.Data["credential"], e.Data["message"]), colorWarn
	default:
		return string(e.Type), fmt.Sprintf("%v", e.Data), colorInfo
	}
}
