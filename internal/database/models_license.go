package database

import (
	"time"
)

// LicenseStatus is the lifecycle state of a license key
type LicenseStatus string

const (
	LicenseNotUsed LicenseStatus = "not_used"
	LicenseUsed    LicenseStatus = "used"
	LicenseBanned  LicenseStatus = "banned"
)

// License is a one-time redeemable key scoped to an application. A key
// moves not_used -> used exactly once; banned keys keep their used_by
// so an unban can restore the consumer's subscription.
type License struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"application_id"`
	Key           string        `json:"key"`
	Level         string        `json:"level"`
	Note          *string       `json:"note,omitempty"`
	Status        LicenseStatus `json:"status"`
	ExpiresSecs   int64         `json:"expires_seconds"`
	GeneratedBy   *string       `json:"generated_by,omitempty"`
	GeneratedAt   time.Time     `json:"generated_at"`
	UsedAt        *time.Time    `json:"used_at,omitempty"`
	UsedBy        *string       `json:"used_by,omitempty"`
	BanReason     *string       `json:"ban_reason,omitempty"`
}

// Duration returns the entitlement the key grants when redeemed
func (l *License) Duration() time.Duration {
	return time.Duration(l.ExpiresSecs) * time.Second
}

// Subscription is a tenant-defined plan, unique per (application, name).
// Level links licenses to the plan they grant.
type Subscription struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	Level         string `json:"level"`
}

// UserSubscription is a user's entitlement to a plan. While paused the
// remaining duration is frozen in PausedRemainingSecs and ExpiresAt is
// no longer authoritative.
type UserSubscription struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	SubscriptionID      string    `json:"subscription_id"`
	ApplicationID       string    `json:"application_id"`
	ExpiresAt           time.Time `json:"expires_at"`
	IsPaused            bool      `json:"is_paused"`
	PausedRemainingSecs int64     `json:"paused_remaining_seconds"`
	LicenseKey          *string   `json:"license_key,omitempty"`
	CreatedAt           time.Time `json:"created_at"`

	// joined from subscriptions
	SubscriptionName string `json:"subscription_name"`
	Level            string `json:"level"`
}

// Active reports whether the entitlement currently grants access
func (s *UserSubscription) Active(now time.Time) bool {
	if s.IsPaused {
		return false
	}
	return now.Before(s.ExpiresAt)
}
