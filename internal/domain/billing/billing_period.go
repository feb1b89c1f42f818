package billing

import (
	"time"

	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PeriodStatus represents the lifecycle of a closed billing period
type PeriodStatus string

const (
	PeriodStatusClosed   PeriodStatus = "closed"
	PeriodStatusInvoiced PeriodStatus = "invoiced"
	PeriodStatusPaid     PeriodStatus = "paid"
)

// BillingPeriodRecord archives one closed billing window for a tenant.
// Exactly one record exists per tenant per closed window; the unique index
// on (tenant_id, period_start) enforces this in the store.
type BillingPeriodRecord struct {
	shared.BaseEntity
	TenantID          uuid.UUID
	PeriodStart       time.Time
	PeriodEnd         time.Time
	PlanID            string
	IncludedRequests  int64
	UsageCount        int64
	OverageBlocks     int64
	OverageAmountCents int64
	TotalAmountCents  int64
	Status            PeriodStatus
	ClosedAt          time.Time
	PaidAt            *time.Time
}

// NewBillingPeriodRecord closes a billing window. Usage is the ledger sum
// for the window and included is the tenant's copied limit, so the charge
// reflects the limit the tenant was actually gated against, not whatever
// the catalog says at close time. The overage charge and plan base price
// are folded into the total so later catalog edits cannot change history.
func NewBillingPeriodRecord(
	tenantID uuid.UUID,
	periodStart, periodEnd time.Time,
	plan *Plan,
	included int64,
	usageCount int64,
	closedAt time.Time,
) (*BillingPeriodRecord, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if !periodEnd.After(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period end must be after period start")
	}
	if included < 0 {
		return nil, shared.NewDomainError("INVALID_LIMIT", "Included request count cannot be negative")
	}
	if usageCount < 0 {
		return nil, shared.NewDomainError("INVALID_USAGE", "Usage count cannot be negative")
	}

	charge := CalculateOverage(usageCount, included, plan.OverageRateCents)

	return &BillingPeriodRecord{
		BaseEntity:         shared.NewBaseEntity(),
		TenantID:           tenantID,
		PeriodStart:        periodStart.UTC(),
		PeriodEnd:          periodEnd.UTC(),
		PlanID:             plan.ID,
		IncludedRequests:   included,
		UsageCount:         usageCount,
		OverageBlocks:      charge.Blocks,
		OverageAmountCents: charge.AmountCents,
		TotalAmountCents:   plan.MonthlyPriceCents + charge.AmountCents,
		Status:             PeriodStatusClosed,
		ClosedAt:           closedAt.UTC(),
	}, nil
}

// MarkInvoiced transitions a closed period to invoiced
func (r *BillingPeriodRecord) MarkInvoiced() error {
	if r.Status != PeriodStatusClosed {
		return shared.ErrInvalidState
	}
	r.Status = PeriodStatusInvoiced
	r.UpdatedAt = time.Now()
	return nil
}

// MarkPaid records payment of an invoiced period
func (r *BillingPeriodRecord) MarkPaid(paidAt time.Time) error {
	if r.Status != PeriodStatusInvoiced {
		return shared.ErrInvalidState
	}
	paidAt = paidAt.UTC()
	r.Status = PeriodStatusPaid
	r.PaidAt = &paidAt
	r.UpdatedAt = time.Now()
	return nil
}
