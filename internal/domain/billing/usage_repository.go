package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsageEventRepository defines persistence for the append-only usage ledger
type UsageEventRepository interface {
	// Save appends a new usage event. Events are never updated.
	Save(ctx context.Context, event *UsageEvent) error

	// SumForPeriod returns the ledger total for a tenant and period key.
	// This sum, not the cached counter on the tenant, is the ground truth.
	SumForPeriod(ctx context.Context, tenantID uuid.UUID, periodKey string) (int64, error)

	// FindByTenant retrieves a tenant's events matching the filter
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter UsageEventFilter) ([]UsageEvent, error)

	// CountByTenant counts a tenant's events matching the filter
	CountByTenant(ctx context.Context, tenantID uuid.UUID, filter UsageEventFilter) (int64, error)

	// DeleteForTenantBefore removes a tenant's events recorded before the
	// cutoff. Used by retention pruning; callers must not pass a cutoff
	// inside the tenant's open billing window.
	DeleteForTenantBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error)
}

// UsageEventFilter defines filtering options for ledger queries
type UsageEventFilter struct {
	PeriodKey string     // Filter by billing bucket
	Kind      UsageKind  // Filter by usage kind
	Since     *time.Time // Filter events recorded at or after this time
	Until     *time.Time // Filter events recorded before this time
	Page      int        // Page number (1-based)
	PageSize  int        // Number of events per page
}

// DefaultUsageEventFilter returns a filter with default values
func DefaultUsageEventFilter() UsageEventFilter {
	return UsageEventFilter{
		Page:     1,
		PageSize: 100,
	}
}

// WithPeriodKey restricts the filter to one billing bucket
func (f UsageEventFilter) WithPeriodKey(key string) UsageEventFilter {
	f.PeriodKey = key
	return f
}

// WithPagination sets pagination options
func (f UsageEventFilter) WithPagination(page, pageSize int) UsageEventFilter {
	f.Page = page
	f.PageSize = pageSize
	return f
}

// BillingPeriodRepository defines persistence for closed billing periods
type BillingPeriodRepository interface {
	// Save inserts a closed period record. Implementations return
	// shared.ErrAlreadyExists when a record for the same tenant and
	// period start is already archived.
	Save(ctx context.Context, record *BillingPeriodRecord) error

	// Update persists status and payment changes to an archived record
	Update(ctx context.Context, record *BillingPeriodRecord) error

	// FindByID looks up one archived record
	FindByID(ctx context.Context, id uuid.UUID) (*BillingPeriodRecord, error)

	// FindByTenant returns a tenant's closed periods, newest first
	FindByTenant(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]BillingPeriodRecord, error)

	// FindByTenantAndStart looks up the record archived for a window
	FindByTenantAndStart(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (*BillingPeriodRecord, error)

	// CountByTenant counts a tenant's closed periods
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
