package tenant

import (
	"time"
)

// Status is the lifecycle state of a tenant account.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusTrial               Status = "trial"
	StatusActive              Status = "active"
	StatusExpired             Status = "expired"
	StatusBlocked             Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusTrial, StatusActive, StatusExpired, StatusBlocked:
		return true
	}
	return false
}

// Plan is the commercial plan of a tenant.
type Plan string

const (
	PlanTrial        Plan = "trial"
	PlanSingleTenant Plan = "single_tenant"
)

// SystemType selects the product a tenant signed up for.
type SystemType string

const (
	SystemCommerce SystemType = "commerce"
	SystemIndustry SystemType = "industry"
	SystemServices SystemType = "services"
)

// Valid reports whether t is a known product.
func (t SystemType) Valid() bool {
	switch t {
	case SystemCommerce, SystemIndustry, SystemServices:
		return true
	}
	return false
}

const (
	// DefaultPaymentDay is the billing day until the owner picks one.
	DefaultPaymentDay = 5

	// TrialPeriod is granted when registration completes.
	TrialPeriod = 15 * 24 * time.Hour

	// MaxExtensions caps trial extensions per tenant.
	MaxExtensions = 2
)

// Days granted by an approved extension or upgrade.
const (
	extensionDays    = 30
	subscriptionDays = 30
)

// Tenant represents a company account and its billing ledger.
type Tenant struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Slug                 string     `json:"slug"`
	Document             string     `json:"document"`
	Email                string     `json:"email"`
	SystemType           SystemType `json:"system_type"`
	Status               Status     `json:"status"`
	Plan                 Plan       `json:"plan"`
	TrialEndsAt          time.Time  `json:"trial_ends_at"`
	SubscriptionEndsAt   *time.Time `json:"subscription_ends_at,omitempty"`
	SingleTenantURL      string     `json:"single_tenant_url,omitempty"`
	MonthlyPaymentDay    int        `json:"monthly_payment_day"`
	BillingDayConfigured bool       `json:"billing_day_configured"`
	LastPaymentDate      *time.Time `json:"last_payment_date,omitempty"`
	ExtensionCount       int        `json:"extension_count"`
	Requests             Ledger     `json:"requests"`
	RegistrationToken    string     `json:"-"`
	Version              int64      `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// MigrationInProgress reports whether an approved upgrade is waiting for
// payment. Non-owner access is locked while this holds.
func (t *Tenant) MigrationInProgress() bool {
	return t.Requests.IndexOf(RequestUpgrade, RequestWaitingPayment) >= 0
}

// CanExtend reports whether another trial extension may be requested.
func (t *Tenant) CanExtend() bool {
	return t.ExtensionCount < MaxExtensions
}

// Destinations maps products to the URLs users land on after sign-in.
type Destinations struct {
	Home     string
	Commerce string
	Industry string
	Services string
}

// For resolves where a tenant's users are sent. A dedicated instance wins
// over the shared product URL.
func (d Destinations) For(t *Tenant) string {
	if t.SingleTenantURL != "" {
		return t.SingleTenantURL
	}
	var target string
	switch t.SystemType {
	case SystemCommerce:
		target = d.Commerce
	case SystemIndustry:
		target = d.Industry
	case SystemServices:
		target = d.Services
	}
	if target == "" {
		return d.Home
	}
	return target
}
