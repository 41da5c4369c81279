package database

import (
	"time"
)

// Application is a tenant: one third-party product registered on the
// platform. It is the isolation boundary for users, licenses, sessions
// and all abuse-guard state.
type Application struct {
	ID                   string    `json:"id"`
	OwnerID              string    `json:"owner_id"`
	Name                 string    `json:"name"`
	Secret               string    `json:"-"`
	Enabled              bool      `json:"enabled"`
	Paused               bool      `json:"paused"`
	Banned               bool      `json:"banned"`
	Version              string    `json:"version"`
	DownloadURL          *string   `json:"download_url,omitempty"`
	FileHash             *string   `json:"-"`
	HWIDCheckEnabled     bool      `json:"hwid_check_enabled"`
	ForceHWID            bool      `json:"force_hwid"`
	MinHWIDLength        int       `json:"min_hwid_length"`
	VPNBlockEnabled      bool      `json:"vpn_block_enabled"`
	HashCheckEnabled     bool      `json:"hash_check_enabled"`
	BlockLeakedPasswords bool      `json:"block_leaked_passwords"`
	SessionExpirySecs    int       `json:"session_expiry_seconds"`
	MinUsernameLength    int       `json:"min_username_length"`
	LicenseMask          string    `json:"license_mask"`
	CooldownSecs         int       `json:"cooldown_seconds"`
	WebhookURL           *string   `json:"-"`
	PanelURL             *string   `json:"panel_url,omitempty"`
	Messages             Messages  `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// SessionExpiry returns the tenant-configured session TTL
func (a *Application) SessionExpiry() time.Duration {
	return time.Duration(a.SessionExpirySecs) * time.Second
}

// Cooldown returns the tenant-configured user cooldown
func (a *Application) Cooldown() time.Duration {
	return time.Duration(a.CooldownSecs) * time.Second
}

// Messages holds the tenant-configurable denial and status texts. A
// zero value for any field means "use the platform default"; stored as
// JSONB so tenants only persist what they override.
type Messages struct {
	AppDisabled      string `json:"app_disabled,omitempty"`
	AppPaused        string `json:"app_paused,omitempty"`
	UsernameTaken    string `json:"username_taken,omitempty"`
	UsernameNotFound string `json:"username_not_found,omitempty"`
	UsernameTooShort string `json:"username_too_short,omitempty"`
	PasswordMismatch string `json:"password_mismatch,omitempty"`
	PasswordLeaked   string `json:"password_leaked,omitempty"`
	KeyNotFound      string `json:"key_not_found,omitempty"`
	KeyUsed          string `json:"key_used,omitempty"`
	KeyBanned        string `json:"key_banned,omitempty"`
	NoSubLevel       string `json:"no_sub_level,omitempty"`
	NoActiveSubs     string `json:"no_active_subs,omitempty"`
	PausedSub        string `json:"paused_sub,omitempty"`
	HWIDMismatch     string `json:"hwid_mismatch,omitempty"`
	HWIDBlacklisted  string `json:"hwid_blacklisted,omitempty"`
	VPNBlocked       string `json:"vpn_blocked,omitempty"`
	UserBanned       string `json:"user_banned,omitempty"`
	SessionUnauthed  string `json:"session_unauthed,omitempty"`
	HashCheckFail    string `json:"hash_check_fail,omitempty"`
	LoggedIn         string `json:"logged_in,omitempty"`
	ChatDelay        string `json:"chat_delay,omitempty"`
}

// DefaultMessages returns the platform defaults for every message slot
func DefaultMessages() Messages {
	return Messages{
		AppDisabled:      "This application is disabled",
		AppPaused:        "Application is currently paused, please wait for the developer to say otherwise.",
		UsernameTaken:    "Username already taken, choose a different one",
		UsernameNotFound: "Invalid username",
		UsernameTooShort: "Username too short, try longer one.",
		PasswordMismatch: "Password does not match.",
		PasswordLeaked:   "This password has been leaked in a data breach (not from us), please use a different one.",
		KeyNotFound:      "Invalid license key",
		KeyUsed:          "License key has already been used",
		KeyBanned:        "Your license is banned",
		NoSubLevel:       "There is no subscription created for your key level. Contact application developer.",
		NoActiveSubs:     "No active subscription(s) found",
		PausedSub:        "Your subscription is paused and can't be used right now",
		HWIDMismatch:     "HWID doesn't match. Ask for a HWID reset",
		HWIDBlacklisted:  "You've been blacklisted from our application",
		VPNBlocked:       "VPNs are blocked on this application",
		UserBanned:       "The user is banned",
		SessionUnauthed:  "Session is not validated",
		HashCheckFail:    "This program hash does not match, make sure you're using latest version",
		LoggedIn:         "Logged in!",
		ChatDelay:        "Chat slower, you've hit the delay limit",
	}
}

// WithDefaults fills every empty message slot with the platform default
func (m Messages) WithDefaults() Messages {
	def := DefaultMessages()
	fill := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Messages{
		AppDisabled:      fill(m.AppDisabled, def.AppDisabled),
		AppPaused:        fill(m.AppPaused, def.AppPaused),
		UsernameTaken:    fill(m.UsernameTaken, def.UsernameTaken),
		UsernameNotFound: fill(m.UsernameNotFound, def.UsernameNotFound),
		UsernameTooShort: fill(m.UsernameTooShort, def.UsernameTooShort),
		PasswordMismatch: fill(m.PasswordMismatch, def.PasswordMismatch),
		PasswordLeaked:   fill(m.PasswordLeaked, def.PasswordLeaked),
		KeyNotFound:      fill(m.KeyNotFound, def.KeyNotFound),
		KeyUsed:          fill(m.KeyUsed, def.KeyUsed),
		KeyBanned:        fill(m.KeyBanned, def.KeyBanned),
		NoSubLevel:       fill(m.NoSubLevel, def.NoSubLevel),
		NoActiveSubs:     fill(m.NoActiveSubs, def.NoActiveSubs),
		PausedSub:        fill(m.PausedSub, def.PausedSub),
		HWIDMismatch:     fill(m.HWIDMismatch, def.HWIDMismatch),
		HWIDBlacklisted:  fill(m.HWIDBlacklisted, def.HWIDBlacklisted),
		VPNBlocked:       fill(m.VPNBlocked, def.VPNBlocked),
		UserBanned:       fill(m.UserBanned, def.UserBanned),
		SessionUnauthed:  fill(m.SessionUnauthed, def.SessionUnauthed),
		HashCheckFail:    fill(m.HashCheckFail, def.HashCheckFail),
		LoggedIn:         fill(m.LoggedIn, def.LoggedIn),
		ChatDelay:        fill(m.ChatDelay, def.ChatDelay),
	}
}
