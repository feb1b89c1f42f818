package identity

import (
	"time"

	"github.com/autoseo/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeTenant = "Tenant"

// Event type constants
const (
	EventTypeTenantRegistered    = "TenantRegistered"
	EventTypeTenantPlanChanged   = "TenantPlanChanged"
	EventTypeTenantStatusChanged = "TenantStatusChanged"
	EventTypeBillingCycleRolled  = "BillingCycleRolled"
)

// TenantRegisteredEvent is published when a new tenant is registered
type TenantRegisteredEvent struct {
	shared.BaseDomainEvent
	Name         string `json:"name"`
	Email        string `json:"email"`
	Plan         string `json:"plan"`
	BillingCycle string `json:"billing_cycle"`
}

// NewTenantRegisteredEvent creates a new TenantRegisteredEvent
func NewTenantRegisteredEvent(tenant *Tenant) *TenantRegisteredEvent {
	return &TenantRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantRegistered, AggregateTypeTenant, tenant.ID, tenant.ID),
		Name:            tenant.Name,
		Email:           tenant.Email,
		Plan:            tenant.Plan,
		BillingCycle:    string(tenant.BillingCycle),
	}
}

// TenantPlanChangedEvent is published when a tenant's plan changes
type TenantPlanChangedEvent struct {
	shared.BaseDomainEvent
	OldPlan   string `json:"old_plan"`
	NewPlan   string `json:"new_plan"`
	RateLimit int64  `json:"rate_limit"`
}

// NewTenantPlanChangedEvent creates a new TenantPlanChangedEvent
func NewTenantPlanChangedEvent(tenant *Tenant, oldPlan, newPlan string) *TenantPlanChangedEvent {
	return &TenantPlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantPlanChanged, AggregateTypeTenant, tenant.ID, tenant.ID),
		OldPlan:         oldPlan,
		NewPlan:         newPlan,
		RateLimit:       tenant.RateLimit,
	}
}

// TenantStatusChangedEvent is published when the subscription status changes
type TenantStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus SubscriptionStatus `json:"old_status"`
	NewStatus SubscriptionStatus `json:"new_status"`
}

// NewTenantStatusChangedEvent creates a new TenantStatusChangedEvent
func NewTenantStatusChangedEvent(tenant *Tenant, oldStatus, newStatus SubscriptionStatus) *TenantStatusChangedEvent {
	return &TenantStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantStatusChanged, AggregateTypeTenant, tenant.ID, tenant.ID),
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

// BillingCycleRolledEvent is published when a billing window closes
type BillingCycleRolledEvent struct {
	shared.BaseDomainEvent
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	UsageCount  int64     `json:"usage_count"`
}

// NewBillingCycleRolledEvent creates a new BillingCycleRolledEvent
func NewBillingCycleRolledEvent(tenant *Tenant, periodStart, periodEnd time.Time) *BillingCycleRolledEvent {
	return &BillingCycleRolledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillingCycleRolled, AggregateTypeTenant, tenant.ID, tenant.ID),
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		UsageCount:      tenant.UsageCount,
	}
}
