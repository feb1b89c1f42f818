package billing

import (
	"context"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// overageEstimateThreshold is the usage fraction above which the summary
// starts projecting the end-of-cycle overage charge
const overageEstimateThreshold = 0.8

// UsageSummary describes the open billing window for a tenant
type UsageSummary struct {
	TenantID         uuid.UUID              `json:"tenant_id"`
	Plan             string                 `json:"plan"`
	BillingCycle     billing.BillingCycle   `json:"billing_cycle"`
	PeriodStart      time.Time              `json:"period_start"`
	PeriodEnd        time.Time              `json:"period_end"`
	DaysLeft         int                    `json:"days_left"`
	CurrentUsage     int64                  `json:"current_usage"`
	Limit            int64                  `json:"limit"`
	Remaining        int64                  `json:"remaining"`
	PercentageUsed   float64                `json:"percentage_used"`
	EstimatedOverage *billing.OverageCharge `json:"estimated_overage,omitempty"`
}

// BillingHistoryEntry is one closed period in a tenant's history
type BillingHistoryEntry struct {
	ID            uuid.UUID  `json:"id"`
	PeriodStart   time.Time  `json:"period_start"`
	PeriodEnd     time.Time  `json:"period_end"`
	Plan          string     `json:"plan"`
	UsageCount    int64      `json:"usage_count"`
	Included      int64      `json:"included_requests"`
	OverageBlocks int64      `json:"overage_blocks"`
	OverageAmount string     `json:"overage_amount"`
	TotalAmount   string     `json:"total_amount"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// Dashboard aggregates the tenant, its usage and recent history
type Dashboard struct {
	TenantID           uuid.UUID                   `json:"tenant_id"`
	Name               string                      `json:"name"`
	Plan               string                      `json:"plan"`
	SubscriptionStatus identity.SubscriptionStatus `json:"subscription_status"`
	Usage              UsageSummary                `json:"usage"`
	RecentPeriods      []BillingHistoryEntry       `json:"recent_periods"`
}

// ReportingService answers read-only usage and billing queries. Summaries
// are computed from the ledger, not the cached counter.
type ReportingService struct {
	tenantRepo identity.TenantRepository
	usageRepo  billing.UsageEventRepository
	periodRepo billing.BillingPeriodRepository
	cycles     *CycleService
	logger     *zap.Logger
}

// NewReportingService creates a new ReportingService
func NewReportingService(
	tenantRepo identity.TenantRepository,
	usageRepo billing.UsageEventRepository,
	periodRepo billing.BillingPeriodRepository,
	cycles *CycleService,
	logger *zap.Logger,
) *ReportingService {
	return &ReportingService{
		tenantRepo: tenantRepo,
		usageRepo:  usageRepo,
		periodRepo: periodRepo,
		cycles:     cycles,
		logger:     logger,
	}
}

// GetUsageSummary reconciles the tenant and reports the open window
func (s *ReportingService) GetUsageSummary(ctx context.Context, tenantID uuid.UUID, now time.Time) (*UsageSummary, error) {
	tenant, err := s.cycles.ReconcileByID(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	usage, err := s.usageRepo.SumForPeriod(ctx, tenantID, tenant.CurrentPeriodKey())
	if err != nil {
		return nil, err
	}

	plan, err := billing.GetPlan(tenant.Plan)
	if err != nil {
		return nil, shared.ErrInvariantViolation
	}

	summary := &UsageSummary{
		TenantID:     tenant.ID,
		Plan:         tenant.Plan,
		BillingCycle: tenant.BillingCycle,
		PeriodStart:  tenant.CycleStart,
		PeriodEnd:    tenant.CycleEnd,
		DaysLeft:     daysLeft(tenant.CycleEnd, now),
		CurrentUsage: usage,
		Limit:        tenant.RateLimit,
	}
	if usage < tenant.RateLimit {
		summary.Remaining = tenant.RateLimit - usage
	}
	if tenant.RateLimit > 0 {
		summary.PercentageUsed = round2(float64(usage) / float64(tenant.RateLimit) * 100)
	}

	// estimated against the tenant's pinned allowance, the same base the
	// cycle close will charge against
	if float64(usage) > float64(tenant.RateLimit)*overageEstimateThreshold {
		charge := billing.CalculateOverage(usage, tenant.RateLimit, plan.OverageRateCents)
		summary.EstimatedOverage = &charge
	}

	return summary, nil
}

// GetBillingHistory returns a tenant's closed periods, newest first
func (s *ReportingService) GetBillingHistory(ctx context.Context, tenantID uuid.UUID, page, pageSize int) (*shared.Paginated[BillingHistoryEntry], error) {
	if _, err := s.tenantRepo.FindByID(ctx, tenantID); err != nil {
		if err == shared.ErrNotFound {
			return nil, identity.ErrTenantNotFound
		}
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	records, err := s.periodRepo.FindByTenant(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.periodRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	entries := make([]BillingHistoryEntry, 0, len(records))
	for i := range records {
		entries = append(entries, toHistoryEntry(&records[i]))
	}

	result := shared.NewPaginated(entries, total, page, pageSize)
	return &result, nil
}

// GetDashboard aggregates tenant state, usage and the last closed periods
func (s *ReportingService) GetDashboard(ctx context.Context, tenantID uuid.UUID, now time.Time) (*Dashboard, error) {
	summary, err := s.GetUsageSummary(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	records, err := s.periodRepo.FindByTenant(ctx, tenantID, 1, 3)
	if err != nil {
		return nil, err
	}

	recent := make([]BillingHistoryEntry, 0, len(records))
	for i := range records {
		recent = append(recent, toHistoryEntry(&records[i]))
	}

	return &Dashboard{
		TenantID:           tenant.ID,
		Name:               tenant.Name,
		Plan:               tenant.Plan,
		SubscriptionStatus: tenant.SubscriptionStatus,
		Usage:              *summary,
		RecentPeriods:      recent,
	}, nil
}

func toHistoryEntry(r *billing.BillingPeriodRecord) BillingHistoryEntry {
	return BillingHistoryEntry{
		ID:            r.ID,
		PeriodStart:   r.PeriodStart,
		PeriodEnd:     r.PeriodEnd,
		Plan:          r.PlanID,
		UsageCount:    r.UsageCount,
		Included:      r.IncludedRequests,
		OverageBlocks: r.OverageBlocks,
		OverageAmount: centsToAmount(r.OverageAmountCents),
		TotalAmount:   centsToAmount(r.TotalAmountCents),
		Status:        string(r.Status),
		PaidAt:        r.PaidAt,
	}
}

func centsToAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func daysLeft(cycleEnd, now time.Time) int {
	d := int(cycleEnd.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
