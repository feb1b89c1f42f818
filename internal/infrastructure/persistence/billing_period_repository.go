package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingPeriodModel is the GORM model for closed billing periods
type BillingPeriodModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_billing_periods_tenant_start,priority:1"`
	PeriodStart        time.Time `gorm:"not null;uniqueIndex:idx_billing_periods_tenant_start,priority:2"`
	PeriodEnd          time.Time `gorm:"not null"`
	PlanID             string    `gorm:"type:varchar(50);not null"`
	IncludedRequests   int64     `gorm:"not null"`
	UsageCount         int64     `gorm:"not null"`
	OverageBlocks      int64     `gorm:"not null"`
	OverageAmountCents int64     `gorm:"not null"`
	TotalAmountCents   int64     `gorm:"not null"`
	Status             string    `gorm:"type:varchar(20);not null;default:'closed'"`
	ClosedAt           time.Time `gorm:"not null"`
	PaidAt             *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (BillingPeriodModel) TableName() string {
	return "billing_periods"
}

// ToEntity converts the model to a domain entity
func (m *BillingPeriodModel) ToEntity() *billing.BillingPeriodRecord {
	return &billing.BillingPeriodRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:           m.TenantID,
		PeriodStart:        m.PeriodStart.UTC(),
		PeriodEnd:          m.PeriodEnd.UTC(),
		PlanID:             m.PlanID,
		IncludedRequests:   m.IncludedRequests,
		UsageCount:         m.UsageCount,
		OverageBlocks:      m.OverageBlocks,
		OverageAmountCents: m.OverageAmountCents,
		TotalAmountCents:   m.TotalAmountCents,
		Status:             billing.PeriodStatus(m.Status),
		ClosedAt:           m.ClosedAt.UTC(),
		PaidAt:             m.PaidAt,
	}
}

// BillingPeriodModelFromEntity creates a model from a domain entity
func BillingPeriodModelFromEntity(r *billing.BillingPeriodRecord) *BillingPeriodModel {
	return &BillingPeriodModel{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		PeriodStart:        r.PeriodStart,
		PeriodEnd:          r.PeriodEnd,
		PlanID:             r.PlanID,
		IncludedRequests:   r.IncludedRequests,
		UsageCount:         r.UsageCount,
		OverageBlocks:      r.OverageBlocks,
		OverageAmountCents: r.OverageAmountCents,
		TotalAmountCents:   r.TotalAmountCents,
		Status:             string(r.Status),
		ClosedAt:           r.ClosedAt,
		PaidAt:             r.PaidAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// GormBillingPeriodRepository implements billing.BillingPeriodRepository using GORM
type GormBillingPeriodRepository struct {
	db *gorm.DB
}

// NewGormBillingPeriodRepository creates a new GormBillingPeriodRepository
func NewGormBillingPeriodRepository(db *gorm.DB) *GormBillingPeriodRepository {
	return &GormBillingPeriodRepository{db: db}
}

var _ billing.BillingPeriodRepository = (*GormBillingPeriodRepository)(nil)

// Save inserts a closed period record. The unique index on tenant and period
// start makes the archive idempotent across rollover retries.
func (r *GormBillingPeriodRepository) Save(ctx context.Context, record *billing.BillingPeriodRecord) error {
	model := BillingPeriodModelFromEntity(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists status and payment changes to an archived record
func (r *GormBillingPeriodRepository) Update(ctx context.Context, record *billing.BillingPeriodRecord) error {
	model := BillingPeriodModelFromEntity(record)
	result := r.db.WithContext(ctx).Model(&BillingPeriodModel{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"status":     model.Status,
			"paid_at":    model.PaidAt,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID looks up one archived record
func (r *GormBillingPeriodRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.BillingPeriodRecord, error) {
	var model BillingPeriodModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByTenant returns a tenant's closed periods, newest first
func (r *GormBillingPeriodRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]billing.BillingPeriodRecord, error) {
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var models []BillingPeriodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("period_start DESC").
		Offset(offset).Limit(pageSize).
		Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]billing.BillingPeriodRecord, len(models))
	for i := range models {
		records[i] = *models[i].ToEntity()
	}
	return records, nil
}

// FindByTenantAndStart looks up the record archived for a window
func (r *GormBillingPeriodRepository) FindByTenantAndStart(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (*billing.BillingPeriodRecord, error) {
	var model BillingPeriodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("period_start = ?", periodStart).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// CountByTenant counts a tenant's closed periods
func (r *GormBillingPeriodRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&BillingPeriodModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
