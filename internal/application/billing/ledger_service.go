package billing

import (
	"context"
	"errors"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordUsageInput contains input for recording a usage event
type RecordUsageInput struct {
	TenantID uuid.UUID
	Kind     billing.UsageKind
	Quantity int64            // defaults to 1
	Metadata billing.Metadata // optional request context

	// CounterReserved marks that the strict-mode gate already charged the
	// cached counter for this quantity
	CounterReserved bool
}

// LedgerService appends to the usage ledger and keeps the tenant's cached
// counter in step. Recording is never gated; callers decide whether to
// check the rate gate first.
type LedgerService struct {
	tenantRepo identity.TenantRepository
	usageRepo  billing.UsageEventRepository
	cycles     *CycleService
	logger     *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	tenantRepo identity.TenantRepository,
	usageRepo billing.UsageEventRepository,
	cycles *CycleService,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		tenantRepo: tenantRepo,
		usageRepo:  usageRepo,
		cycles:     cycles,
		logger:     logger,
	}
}

// Record appends one usage event under the tenant's current period key and
// increments the cached counter. The window is reconciled first so late
// events land in the window that actually contains now.
func (s *LedgerService) Record(ctx context.Context, input RecordUsageInput, now time.Time) (*billing.UsageEvent, error) {
	if input.Quantity <= 0 {
		input.Quantity = 1
	}
	if input.Kind == "" {
		input.Kind = billing.UsageKindAPIRequest
	}

	tenant, err := s.cycles.ReconcileByID(ctx, input.TenantID, now)
	if err != nil {
		return nil, err
	}

	event, err := billing.NewUsageEvent(tenant.ID, input.Kind, input.Quantity, tenant.CurrentPeriodKey())
	if err != nil {
		return nil, err
	}
	event.WithRecordedAt(now)
	for k, v := range input.Metadata {
		event.WithMetadata(k, v)
	}

	if err := s.usageRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	if !input.CounterReserved {
		if err := s.tenantRepo.IncrementUsage(ctx, tenant.ID, input.Quantity); err != nil {
			// the ledger entry is already durable; the counter will be
			// corrected at the next rollover
			s.logger.Warn("Failed to bump cached usage counter",
				zap.String("tenant_id", tenant.ID.String()),
				zap.Error(err))
		}
	}

	return event, nil
}

// CurrentPeriodUsage returns the ledger ground truth for the open window
func (s *LedgerService) CurrentPeriodUsage(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, *identity.Tenant, error) {
	tenant, err := s.cycles.ReconcileByID(ctx, tenantID, now)
	if err != nil {
		return 0, nil, err
	}

	usage, err := s.usageRepo.SumForPeriod(ctx, tenantID, tenant.CurrentPeriodKey())
	if err != nil {
		return 0, nil, err
	}
	return usage, tenant, nil
}

// ListEvents returns a page of a tenant's ledger, newest first
func (s *LedgerService) ListEvents(ctx context.Context, tenantID uuid.UUID, filter billing.UsageEventFilter) (*shared.Paginated[billing.UsageEvent], error) {
	if _, err := s.tenantRepo.FindByID(ctx, tenantID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.ErrTenantNotFound
		}
		return nil, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = billing.DefaultUsageEventFilter().PageSize
	}

	events, err := s.usageRepo.FindByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.usageRepo.CountByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(events, total, filter.Page, filter.PageSize)
	return &page, nil
}
