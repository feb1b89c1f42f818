package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageEventModel is the GORM model for usage ledger events
type UsageEventModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_events_tenant_period,priority:1"`
	Kind       string    `gorm:"type:varchar(50);not null"`
	Quantity   int64     `gorm:"not null"`
	PeriodKey  string    `gorm:"type:varchar(20);not null;index:idx_usage_events_tenant_period,priority:2"`
	RecordedAt time.Time `gorm:"not null;index"`
	Metadata   []byte    `gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToEntity converts the model to a domain entity
func (m *UsageEventModel) ToEntity() *billing.UsageEvent {
	var metadata billing.Metadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	if metadata == nil {
		metadata = make(billing.Metadata)
	}

	return &billing.UsageEvent{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:   m.TenantID,
		Kind:       billing.UsageKind(m.Kind),
		Quantity:   m.Quantity,
		PeriodKey:  m.PeriodKey,
		RecordedAt: m.RecordedAt.UTC(),
		Metadata:   metadata,
	}
}

// UsageEventModelFromEntity creates a model from a domain entity
func UsageEventModelFromEntity(e *billing.UsageEvent) *UsageEventModel {
	var metadataBytes []byte
	if e.Metadata != nil {
		metadataBytes, _ = json.Marshal(e.Metadata)
	} else {
		metadataBytes = []byte("{}")
	}

	return &UsageEventModel{
		ID:         e.ID,
		TenantID:   e.TenantID,
		Kind:       string(e.Kind),
		Quantity:   e.Quantity,
		PeriodKey:  e.PeriodKey,
		RecordedAt: e.RecordedAt,
		Metadata:   metadataBytes,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// GormUsageEventRepository implements billing.UsageEventRepository using GORM
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

var _ billing.UsageEventRepository = (*GormUsageEventRepository)(nil)

// Save appends a new usage event
func (r *GormUsageEventRepository) Save(ctx context.Context, event *billing.UsageEvent) error {
	model := UsageEventModelFromEntity(event)
	return r.db.WithContext(ctx).Create(model).Error
}

// SumForPeriod returns the ledger total for a tenant and period key
func (r *GormUsageEventRepository) SumForPeriod(ctx context.Context, tenantID uuid.UUID, periodKey string) (int64, error) {
	var result struct {
		Total int64
	}

	err := r.db.WithContext(ctx).
		Model(&UsageEventModel{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("tenant_id = ?", tenantID).
		Where("period_key = ?", periodKey).
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// FindByTenant retrieves a tenant's events matching the filter, newest first
func (r *GormUsageEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter billing.UsageEventFilter) ([]billing.UsageEvent, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	query = applyUsageEventFilter(query, filter)

	offset := (filter.Page - 1) * filter.PageSize
	if offset < 0 {
		offset = 0
	}
	limit := filter.PageSize
	if limit <= 0 {
		limit = 100
	}
	query = query.Order("recorded_at DESC").Offset(offset).Limit(limit)

	var models []UsageEventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]billing.UsageEvent, len(models))
	for i := range models {
		events[i] = *models[i].ToEntity()
	}
	return events, nil
}

// CountByTenant counts a tenant's events matching the filter
func (r *GormUsageEventRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID, filter billing.UsageEventFilter) (int64, error) {
	query := r.db.WithContext(ctx).Model(&UsageEventModel{}).Where("tenant_id = ?", tenantID)
	query = applyUsageEventFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteForTenantBefore removes a tenant's events recorded before the cutoff
func (r *GormUsageEventRepository) DeleteForTenantBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("recorded_at < ?", cutoff).
		Delete(&UsageEventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func applyUsageEventFilter(query *gorm.DB, filter billing.UsageEventFilter) *gorm.DB {
	if filter.PeriodKey != "" {
		query = query.Where("period_key = ?", filter.PeriodKey)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.Since != nil {
		query = query.Where("recorded_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("recorded_at < ?", *filter.Until)
	}
	return query
}
