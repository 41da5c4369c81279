package database

import (
	"time"
)

// Session is a short-lived client session. It starts unvalidated and
// binds to a credential exactly once on successful auth.
type Session struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	ApplicationID string    `json:"application_id"`
	Credential    *string   `json:"credential,omitempty"`
	IsValidated   bool      `json:"is_validated"`
	EncryptionKey string    `json:"-"`
	IPAddress     *string   `json:"ip_address,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the session TTL has elapsed
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// BlacklistEntry blocks an IP or HWID for one application
type BlacklistEntry struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	HWID          *string   `json:"hwid,omitempty"`
	IPAddress     *string   `json:"ip_address,omitempty"`
	Reason        *string   `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// WhitelistEntry exempts an IP from the VPN block for one application
type WhitelistEntry struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	IPAddress     string `json:"ip_address"`
}

// AppVariable is a tenant-defined server-side value readable by clients
type AppVariable struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	Data          string `json:"data"`
}

// File is a downloadable artifact addressed by its public file id
type File struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	FileID        string `json:"file_id"`
	URL           string `json:"url"`
}

// WebhookEndpoint is a tenant-registered outbound URL addressed by id
type WebhookEndpoint struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	WebhookID     string  `json:"webhook_id"`
	URL           string  `json:"url"`
	UserAgent     *string `json:"user_agent,omitempty"`
}

// ChatChannel groups chat messages and throttles senders per channel
type ChatChannel struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	DelaySecs     int    `json:"delay_seconds"`
}

// ChatMessage is one line in a channel, capped server side
type ChatMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}
