package billing

import (
	"context"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoicingService moves archived billing periods through their payment
// lifecycle: closed, invoiced, then paid. The amounts themselves were
// frozen when the period was archived; only the status and the payment
// timestamp change here.
type InvoicingService struct {
	periodRepo billing.BillingPeriodRepository
	logger     *zap.Logger
}

// NewInvoicingService creates a new InvoicingService
func NewInvoicingService(periodRepo billing.BillingPeriodRepository, logger *zap.Logger) *InvoicingService {
	return &InvoicingService{
		periodRepo: periodRepo,
		logger:     logger,
	}
}

// MarkInvoiced transitions a closed period to invoiced. The period must
// belong to the given tenant.
func (s *InvoicingService) MarkInvoiced(ctx context.Context, tenantID, periodID uuid.UUID) (*billing.BillingPeriodRecord, error) {
	record, err := s.loadOwned(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	if err := record.MarkInvoiced(); err != nil {
		return nil, err
	}
	if err := s.periodRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("Billing period invoiced",
		zap.String("tenant_id", tenantID.String()),
		zap.String("period_id", periodID.String()),
		zap.Int64("total_amount_cents", record.TotalAmountCents))
	return record, nil
}

// MarkPaid records payment of an invoiced period at the given instant
func (s *InvoicingService) MarkPaid(ctx context.Context, tenantID, periodID uuid.UUID, paidAt time.Time) (*billing.BillingPeriodRecord, error) {
	record, err := s.loadOwned(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	if err := record.MarkPaid(paidAt); err != nil {
		return nil, err
	}
	if err := s.periodRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("Billing period paid",
		zap.String("tenant_id", tenantID.String()),
		zap.String("period_id", periodID.String()),
		zap.Time("paid_at", paidAt))
	return record, nil
}

// loadOwned fetches a period and hides records of other tenants behind
// not-found so the admin API cannot confirm foreign period IDs
func (s *InvoicingService) loadOwned(ctx context.Context, tenantID, periodID uuid.UUID) (*billing.BillingPeriodRecord, error) {
	record, err := s.periodRepo.FindByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if record.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return record, nil
}
