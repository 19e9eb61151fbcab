// Package license is the entitlement engine: a single site-wide license
// moving between inactive, active and expired, persisted option by option
// in a kv.Store.
package license

import (
	"context"
	"errors"
	"strings"
	"time"
)

// State is the license lifecycle state.
type State string

// License states.
const (
	StateInactive State = "inactive"
	StateActive   State = "active"
	StateExpired  State = "expired"
)

// Plan is a billing period.
type Plan string

// Plans.
const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// ParsePlan returns the plan named by s, or fallback when s names none.
func ParsePlan(s string, fallback Plan) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case PlanMonthly:
		return PlanMonthly
	case PlanYearly:
		return PlanYearly
	}
	return fallback
}

// Option store keys. Each is read and written independently.
const (
	KeyLicenseKey = "license_key"
	KeyState      = "license_state"
	KeyValid      = "license_valid"
	KeyPlan       = "license_plan"
	KeyExpires    = "license_expires"
)

// DateLayout is the format of ExpiresAt: a UTC calendar date.
const DateLayout = "2006-01-02"

// ErrEmptyKey is returned when activation is attempted without a key.
var ErrEmptyKey = errors.New("license key cannot be empty")

// License is the persisted license record.
type License struct {
	Key       string `json:"license_key,omitempty"`
	State     State  `json:"state"`
	Plan      Plan   `json:"plan,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Valid     bool   `json:"valid"`
}

// Result is the outcome of an activation or deactivation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status is the admin view of the license.
type Status struct {
	State         State  `json:"state"`
	Plan          Plan   `json:"plan,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	DaysRemaining int    `json:"days_remaining"`
	HasPro        bool   `json:"has_pro"`
	MaskedKey     string `json:"license_key,omitempty"`
}

// RemoteValidator checks a key against an external license server.
type RemoteValidator interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// AlwaysValid is the shipped RemoteValidator. There is no license server.
type AlwaysValid struct{}

// Validate implements RemoteValidator.
func (AlwaysValid) Validate(context.Context, string) (bool, error) {
	return true, nil
}

// expiryFor returns the expiry date for a plan activated on day.
// AddDate normalizes overflow, so Jan 31 + 1 month is Mar 3 (Mar 2 in leap years).
func expiryFor(plan Plan, day time.Time) string {
	if plan == PlanYearly {
		return day.AddDate(1, 0, 0).Format(DateLayout)
	}
	return day.AddDate(0, 1, 0).Format(DateLayout)
}

// MaskKey hides all but the last four characters of a license key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
