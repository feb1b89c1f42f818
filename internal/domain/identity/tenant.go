package identity

import (
	"strings"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/shared"
)

// SubscriptionStatus represents the payment standing of a tenant
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// ValidateSubscriptionStatus checks that the status is a known value
func ValidateSubscriptionStatus(status SubscriptionStatus) error {
	switch status {
	case SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled:
		return nil
	default:
		return shared.NewDomainError("INVALID_STATUS", "Invalid subscription status")
	}
}

// ErrTenantNotFound is returned when a tenant lookup misses
var ErrTenantNotFound = shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")

// ErrSubscriptionInactive is returned when a past_due or canceled tenant
// attempts a metered operation
var ErrSubscriptionInactive = shared.NewDomainError("SUBSCRIPTION_INACTIVE", "Subscription is not active")

// ErrDuplicateEmail is returned when registering with an email already in use
var ErrDuplicateEmail = shared.NewDomainError("DUPLICATE_EMAIL", "A tenant with this email already exists")

// Tenant is the aggregate root for a metered API customer. It carries the
// current billing window and a cached usage counter; the usage ledger
// remains the ground truth and the counter is reconciled from it on every
// cycle rollover.
type Tenant struct {
	shared.BaseAggregateRoot
	Name               string               `gorm:"type:varchar(200);not null"`
	Email              string               `gorm:"type:varchar(200);not null;uniqueIndex"`
	Plan               string               `gorm:"type:varchar(50);not null;default:'free'"`
	BillingCycle       billing.BillingCycle `gorm:"type:varchar(20);not null;default:'monthly'"`
	SubscriptionStatus SubscriptionStatus   `gorm:"type:varchar(20);not null;default:'active'"`
	CycleStart         time.Time            `gorm:"not null"`
	CycleEnd           time.Time            `gorm:"not null;index"`
	UsageCount         int64                `gorm:"not null;default:0"`
	RateLimit          int64                `gorm:"not null"`
	APIKeyHash         string               `gorm:"type:varchar(64);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant registers a tenant on the given plan. The rate limit is copied
// from the plan at assignment time and the first billing window opens at now.
func NewTenant(name, email string, plan *billing.Plan, cycle billing.BillingCycle, apiKeyHash string, now time.Time) (*Tenant, error) {
	if err := validateTenantName(name); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, billing.ErrPlanNotFound
	}
	if err := billing.ValidateBillingCycle(cycle); err != nil {
		return nil, err
	}
	if apiKeyHash == "" {
		return nil, shared.NewDomainError("INVALID_API_KEY_HASH", "API key hash cannot be empty")
	}

	start, end := billing.InitialWindow(now, cycle)

	tenant := &Tenant{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Name:               name,
		Email:              email,
		Plan:               plan.ID,
		BillingCycle:       cycle,
		SubscriptionStatus: SubscriptionActive,
		CycleStart:         start,
		CycleEnd:           end,
		UsageCount:         0,
		RateLimit:          plan.RateLimit,
		APIKeyHash:         apiKeyHash,
	}

	tenant.AddDomainEvent(NewTenantRegisteredEvent(tenant))

	return tenant, nil
}

// CurrentPeriodKey returns the ledger bucket for the open billing window
func (t *Tenant) CurrentPeriodKey() string {
	return billing.PeriodKey(t.CycleStart)
}

// CycleElapsed reports whether the open window has closed as of now
func (t *Tenant) CycleElapsed(now time.Time) bool {
	return !now.Before(t.CycleEnd)
}

// WindowValid reports whether the billing window is well formed
func (t *Tenant) WindowValid() bool {
	return t.CycleEnd.After(t.CycleStart)
}

// ChangePlan switches the tenant to a new plan, re-copying its rate limit.
// Usage and the open billing window are untouched; the new limit applies
// to the remainder of the current cycle.
func (t *Tenant) ChangePlan(plan *billing.Plan) error {
	if plan == nil {
		return billing.ErrPlanNotFound
	}

	oldPlan := t.Plan
	t.Plan = plan.ID
	t.RateLimit = plan.RateLimit
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenantPlanChangedEvent(t, oldPlan, plan.ID))

	return nil
}

// ChangeStatus transitions the subscription status
func (t *Tenant) ChangeStatus(status SubscriptionStatus) error {
	if err := ValidateSubscriptionStatus(status); err != nil {
		return err
	}
	if t.SubscriptionStatus == status {
		return shared.ErrInvalidState
	}

	oldStatus := t.SubscriptionStatus
	t.SubscriptionStatus = status
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenantStatusChangedEvent(t, oldStatus, status))

	return nil
}

// AdvanceWindow moves the tenant onto the next billing window. Callers
// persist this through a compare-and-swap on the previous cycle end so
// that concurrent rollovers resolve to exactly one winner.
func (t *Tenant) AdvanceWindow(carriedUsage int64) {
	t.AddDomainEvent(NewBillingCycleRolledEvent(t, t.CycleStart, t.CycleEnd))

	t.CycleStart = t.CycleEnd
	t.CycleEnd = billing.NextCycleEnd(t.CycleStart, t.BillingCycle)
	t.UsageCount = carriedUsage
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// ResetWindow opens a fresh billing window at now. Used by the admin
// manual reset after the running cycle has been archived.
func (t *Tenant) ResetWindow(now time.Time) {
	t.AddDomainEvent(NewBillingCycleRolledEvent(t, t.CycleStart, t.CycleEnd))

	t.CycleStart, t.CycleEnd = billing.InitialWindow(now, t.BillingCycle)
	t.UsageCount = 0
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// RotateAPIKey replaces the stored key hash
func (t *Tenant) RotateAPIKey(apiKeyHash string) error {
	if apiKeyHash == "" {
		return shared.NewDomainError("INVALID_API_KEY_HASH", "API key hash cannot be empty")
	}
	t.APIKeyHash = apiKeyHash
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
	return nil
}

// IsActive returns true if metered operations are allowed
func (t *Tenant) IsActive() bool {
	return t.SubscriptionStatus == SubscriptionActive
}

// Remaining returns the requests left under the rate limit per the cached
// counter. Never negative.
func (t *Tenant) Remaining() int64 {
	if t.UsageCount >= t.RateLimit {
		return 0
	}
	return t.RateLimit - t.UsageCount
}

func validateTenantName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot exceed 200 characters")
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	if len(email) > 200 {
		return "", shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", shared.NewDomainError("INVALID_EMAIL", "Email is not valid")
	}
	return email, nil
}
