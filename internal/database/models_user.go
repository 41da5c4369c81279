package database

import (
	"time"
)

// Account is a platform owner: the person who registers applications.
// OwnerID is the short public identifier clients embed in requests.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	OwnerID      string    `json:"owner_id"`
	Role         string    `json:"role"`
	IsBanned     bool      `json:"is_banned"`
	BanReason    *string   `json:"ban_reason,omitempty"`
	LastIP       *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AppUser is an end user of a tenant application, unique per
// (application, username).
type AppUser struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	Email         *string    `json:"email,omitempty"`
	HWID          *string    `json:"hwid,omitempty"`
	Banned        bool       `json:"banned"`
	BanReason     *string    `json:"ban_reason,omitempty"`
	IPAddress     *string    `json:"ip_address,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OnCooldown reports whether the user is still inside a reset cooldown
func (u *AppUser) OnCooldown(now time.Time) bool {
	return u.CooldownUntil != nil && now.Before(*u.CooldownUntil)
}

// UserVariable is a per-user key/value slot writable from the client
// unless marked read only by the tenant.
type UserVariable struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	Data          string `json:"data"`
	ReadOnly      bool   `json:"read_only"`
}

// UserLog is a client-submitted diagnostic line, capped server side
type UserLog struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Credential    *string   `json:"credential,omitempty"`
	Message       string    `json:"message"`
	PCUser        *string   `json:"pc_user,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
