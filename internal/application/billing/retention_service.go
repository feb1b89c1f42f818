package billing

import (
	"context"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RetentionResult summarizes one pruning sweep
type RetentionResult struct {
	TenantsSwept  int   `json:"tenants_swept"`
	EventsDeleted int64 `json:"events_deleted"`
	Failed        int   `json:"failed"`
}

// RetentionService prunes ledger events past the retention horizon.
// Closed periods keep their archived totals in billing_periods, so the raw
// events behind them can be dropped. Events of the open window are never
// touched regardless of age.
type RetentionService struct {
	tenantRepo identity.TenantRepository
	usageRepo  billing.UsageEventRepository
	logger     *zap.Logger

	retentionDays int
}

// RetentionConfig contains configuration for RetentionService
type RetentionConfig struct {
	RetentionDays int
}

// DefaultRetentionConfig returns default configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{RetentionDays: 90}
}

// NewRetentionService creates a new RetentionService
func NewRetentionService(
	tenantRepo identity.TenantRepository,
	usageRepo billing.UsageEventRepository,
	logger *zap.Logger,
	config RetentionConfig,
) *RetentionService {
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultRetentionConfig().RetentionDays
	}
	return &RetentionService{
		tenantRepo:    tenantRepo,
		usageRepo:     usageRepo,
		logger:        logger,
		retentionDays: config.RetentionDays,
	}
}

// RetentionDays returns the configured horizon
func (s *RetentionService) RetentionDays() int {
	return s.retentionDays
}

// PruneOldEvents deletes every tenant's ledger events older than the
// retention horizon, clamped to the tenant's open window start
func (s *RetentionService) PruneOldEvents(ctx context.Context, now time.Time) (*RetentionResult, error) {
	horizon := now.AddDate(0, 0, -s.retentionDays)
	result := &RetentionResult{}

	filter := shared.DefaultFilter()
	filter.PageSize = 200

	for {
		tenants, err := s.tenantRepo.FindAll(ctx, filter)
		if err != nil {
			return result, err
		}
		if len(tenants) == 0 {
			break
		}

		for i := range tenants {
			tenant := &tenants[i]

			cutoff := horizon
			if cutoff.After(tenant.CycleStart) {
				cutoff = tenant.CycleStart
			}

			deleted, err := s.usageRepo.DeleteForTenantBefore(ctx, tenant.ID, cutoff)
			if err != nil {
				s.logger.Error("Failed to prune usage events",
					zap.String("tenant_id", tenant.ID.String()),
					zap.Error(err))
				result.Failed++
				continue
			}

			result.TenantsSwept++
			result.EventsDeleted += deleted
		}

		if len(tenants) < filter.PageSize {
			break
		}
		filter.Page++
	}

	s.logger.Info("Usage retention sweep finished",
		zap.Int("tenants_swept", result.TenantsSwept),
		zap.Int64("events_deleted", result.EventsDeleted),
		zap.Int("failed", result.Failed))

	return result, nil
}
