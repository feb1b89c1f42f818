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

// CycleService owns billing window rollovers. Windows are advanced lazily
// on the request path and by the background sweep; both paths converge on
// Reconcile, which is safe to run concurrently for the same tenant.
type CycleService struct {
	tenantRepo identity.TenantRepository
	usageRepo  billing.UsageEventRepository
	periodRepo billing.BillingPeriodRepository
	logger     *zap.Logger

	maxCatchUpCycles int
}

// CycleServiceConfig contains configuration for CycleService
type CycleServiceConfig struct {
	// MaxCatchUpCycles bounds how many missed windows a single reconcile
	// may close. A tenant further behind than this has a corrupt window.
	MaxCatchUpCycles int
}

// DefaultCycleServiceConfig returns default configuration
func DefaultCycleServiceConfig() CycleServiceConfig {
	return CycleServiceConfig{
		MaxCatchUpCycles: 120,
	}
}

// NewCycleService creates a new CycleService
func NewCycleService(
	tenantRepo identity.TenantRepository,
	usageRepo billing.UsageEventRepository,
	periodRepo billing.BillingPeriodRepository,
	logger *zap.Logger,
	config CycleServiceConfig,
) *CycleService {
	if config.MaxCatchUpCycles <= 0 {
		config.MaxCatchUpCycles = DefaultCycleServiceConfig().MaxCatchUpCycles
	}
	return &CycleService{
		tenantRepo:       tenantRepo,
		usageRepo:        usageRepo,
		periodRepo:       periodRepo,
		logger:           logger,
		maxCatchUpCycles: config.MaxCatchUpCycles,
	}
}

// Reconcile brings a tenant's billing window forward until it contains now,
// closing one period per missed cycle. Every closed period is archived with
// its ledger usage and overage charge before the next window opens.
//
// Concurrent reconciles for the same tenant are resolved by a
// compare-and-swap on the previous cycle end: exactly one caller wins each
// rollover, losers reload the tenant and observe the winner's result.
// Returns the up-to-date tenant.
func (s *CycleService) Reconcile(ctx context.Context, tenant *identity.Tenant, now time.Time) (*identity.Tenant, error) {
	if tenant == nil {
		return nil, identity.ErrTenantNotFound
	}
	if !tenant.WindowValid() {
		s.logger.Error("Tenant billing window is inverted",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Time("cycle_start", tenant.CycleStart),
			zap.Time("cycle_end", tenant.CycleEnd))
		return nil, shared.ErrInvariantViolation
	}

	cycles := 0
	for tenant.CycleElapsed(now) {
		cycles++
		if cycles > s.maxCatchUpCycles {
			s.logger.Error("Reconcile exceeded catch-up bound",
				zap.String("tenant_id", tenant.ID.String()),
				zap.Int("max_cycles", s.maxCatchUpCycles))
			return nil, shared.ErrInvariantViolation
		}

		advanced, err := s.closeCurrentWindow(ctx, tenant, now)
		if err != nil {
			return nil, err
		}
		tenant = advanced
	}

	return tenant, nil
}

// ReconcileByID loads the tenant and reconciles it
func (s *CycleService) ReconcileByID(ctx context.Context, tenantID uuid.UUID, now time.Time) (*identity.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.ErrTenantNotFound
		}
		return nil, err
	}
	return s.Reconcile(ctx, tenant, now)
}

// closeCurrentWindow performs one rollover step. On a lost race the
// reloaded tenant is returned and no period is archived here.
func (s *CycleService) closeCurrentWindow(ctx context.Context, tenant *identity.Tenant, now time.Time) (*identity.Tenant, error) {
	plan, err := billing.GetPlan(tenant.Plan)
	if err != nil {
		s.logger.Error("Tenant references unknown plan",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("plan", tenant.Plan))
		return nil, shared.ErrInvariantViolation
	}

	closingStart := tenant.CycleStart
	closingEnd := tenant.CycleEnd
	closingKey := tenant.CurrentPeriodKey()

	usage, err := s.usageRepo.SumForPeriod(ctx, tenant.ID, closingKey)
	if err != nil {
		return nil, err
	}

	// The record is archived before the window advances. If the store
	// fails here the window stays put and the next reconcile retries;
	// advancing first would orphan the closed period forever.
	record, err := billing.NewBillingPeriodRecord(tenant.ID, closingStart, closingEnd, plan, tenant.RateLimit, usage, now)
	if err != nil {
		return nil, err
	}
	if err := s.periodRepo.Save(ctx, record); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// a racing reconcile archived this window first; the unique
			// (tenant_id, period_start) index keeps the archive single
			s.logger.Debug("Billing period already archived",
				zap.String("tenant_id", tenant.ID.String()),
				zap.Time("period_start", closingStart))
		} else {
			return nil, err
		}
	}

	// Usage already ledgered against the upcoming window carries over
	// into the new cached counter, normally zero.
	nextKey := billing.PeriodKey(closingEnd)
	carried, err := s.usageRepo.SumForPeriod(ctx, tenant.ID, nextKey)
	if err != nil {
		return nil, err
	}

	tenant.AdvanceWindow(carried)

	won, err := s.tenantRepo.AdvanceCycleWindow(ctx, tenant, closingEnd)
	if err != nil {
		return nil, err
	}
	if !won {
		s.logger.Debug("Lost cycle rollover race, reloading tenant",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Time("cycle_end", closingEnd))
		fresh, err := s.tenantRepo.FindByID(ctx, tenant.ID)
		if err != nil {
			return nil, err
		}
		return fresh, nil
	}

	s.logger.Info("Closed billing period",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Time("period_start", closingStart),
		zap.Time("period_end", closingEnd),
		zap.Int64("usage", usage),
		zap.Int64("overage_cents", record.OverageAmountCents))

	return tenant, nil
}

// ResetCycle closes the running window early and opens a fresh one at now.
// The truncated window is archived like a normal rollover. Admin use only.
func (s *CycleService) ResetCycle(ctx context.Context, tenantID uuid.UUID, now time.Time) (*identity.Tenant, error) {
	tenant, err := s.ReconcileByID(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	plan, err := billing.GetPlan(tenant.Plan)
	if err != nil {
		return nil, shared.ErrInvariantViolation
	}

	closingStart := tenant.CycleStart
	closingEnd := tenant.CycleEnd
	closingKey := tenant.CurrentPeriodKey()

	usage, err := s.usageRepo.SumForPeriod(ctx, tenantID, closingKey)
	if err != nil {
		return nil, err
	}

	// the truncated window ends at the reset instant, not its scheduled
	// end; nothing to archive when the window never accrued any time.
	// Archived before the window moves so a store failure leaves the
	// reset retriable rather than the period lost.
	if now.After(closingStart) {
		record, err := billing.NewBillingPeriodRecord(tenant.ID, closingStart, now, plan, tenant.RateLimit, usage, now)
		if err != nil {
			return nil, err
		}
		if err := s.periodRepo.Save(ctx, record); err != nil && !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
	}

	tenant.ResetWindow(now)

	won, err := s.tenantRepo.AdvanceCycleWindow(ctx, tenant, closingEnd)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, shared.ErrConcurrencyConflict
	}

	s.logger.Info("Billing cycle manually reset",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Time("reset_at", now))

	return tenant, nil
}

// SweepElapsed reconciles every tenant whose window has closed. Called by
// the background scheduler so idle tenants do not wait for their next
// request to be billed.
func (s *CycleService) SweepElapsed(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	swept := 0
	for {
		tenants, err := s.tenantRepo.FindWithElapsedCycle(ctx, now, batchSize)
		if err != nil {
			return swept, err
		}
		if len(tenants) == 0 {
			return swept, nil
		}

		for i := range tenants {
			if _, err := s.Reconcile(ctx, &tenants[i], now); err != nil {
				s.logger.Error("Failed to reconcile tenant during sweep",
					zap.String("tenant_id", tenants[i].ID.String()),
					zap.Error(err))
				continue
			}
			swept++
		}

		if len(tenants) < batchSize {
			return swept, nil
		}
	}
}
