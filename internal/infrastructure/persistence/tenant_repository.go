package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantModel is the GORM model for tenants
type TenantModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name               string    `gorm:"type:varchar(255);not null"`
	Email              string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Plan               string    `gorm:"type:varchar(50);not null"`
	BillingCycle       string    `gorm:"type:varchar(20);not null;default:'monthly'"`
	SubscriptionStatus string    `gorm:"type:varchar(20);not null;default:'active'"`
	CycleStart         time.Time `gorm:"not null"`
	CycleEnd           time.Time `gorm:"not null;index"`
	UsageCount         int64     `gorm:"not null;default:0"`
	RateLimit          int64     `gorm:"not null"`
	APIKeyHash         string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Version            int       `gorm:"not null;default:1"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (TenantModel) TableName() string {
	return "tenants"
}

// ToEntity converts the model to a domain entity
func (m *TenantModel) ToEntity() *identity.Tenant {
	return &identity.Tenant{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:               m.Name,
		Email:              m.Email,
		Plan:               m.Plan,
		BillingCycle:       billing.BillingCycle(m.BillingCycle),
		SubscriptionStatus: identity.SubscriptionStatus(m.SubscriptionStatus),
		CycleStart:         m.CycleStart.UTC(),
		CycleEnd:           m.CycleEnd.UTC(),
		UsageCount:         m.UsageCount,
		RateLimit:          m.RateLimit,
		APIKeyHash:         m.APIKeyHash,
	}
}

// TenantModelFromEntity creates a model from a domain entity
func TenantModelFromEntity(t *identity.Tenant) *TenantModel {
	return &TenantModel{
		ID:                 t.ID,
		Name:               t.Name,
		Email:              t.Email,
		Plan:               t.Plan,
		BillingCycle:       string(t.BillingCycle),
		SubscriptionStatus: string(t.SubscriptionStatus),
		CycleStart:         t.CycleStart,
		CycleEnd:           t.CycleEnd,
		UsageCount:         t.UsageCount,
		RateLimit:          t.RateLimit,
		APIKeyHash:         t.APIKeyHash,
		Version:            t.Version,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// GormTenantRepository implements identity.TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

var _ identity.TenantRepository = (*GormTenantRepository)(nil)

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	var model TenantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByEmail finds a tenant by its unique email
func (r *GormTenantRepository) FindByEmail(ctx context.Context, email string) (*identity.Tenant, error) {
	var model TenantModel
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindByAPIKeyHash finds a tenant by the hash of its API key
func (r *GormTenantRepository) FindByAPIKeyHash(ctx context.Context, hash string) (*identity.Tenant, error) {
	if hash == "" {
		return nil, shared.ErrNotFound
	}
	var model TenantModel
	if err := r.db.WithContext(ctx).
		Where("api_key_hash = ?", hash).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// FindAll finds all tenants matching the filter
func (r *GormTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, error) {
	var tenantModels []TenantModel
	query := r.db.WithContext(ctx).Model(&TenantModel{})

	if filter.Search != "" {
		keyword := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", keyword, keyword)
	}

	// Sorting goes through a whitelist to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, TenantSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	offset := (filter.Page - 1) * filter.PageSize
	if offset < 0 {
		offset = 0
	}
	limit := filter.PageSize
	if limit <= 0 {
		limit = 20
	}
	query = query.Offset(offset).Limit(limit)

	if err := query.Find(&tenantModels).Error; err != nil {
		return nil, err
	}

	tenants := make([]identity.Tenant, len(tenantModels))
	for i := range tenantModels {
		tenants[i] = *tenantModels[i].ToEntity()
	}
	return tenants, nil
}

// FindWithElapsedCycle finds tenants whose billing window has ended at the
// given instant, oldest first
func (r *GormTenantRepository) FindWithElapsedCycle(ctx context.Context, now time.Time, limit int) ([]identity.Tenant, error) {
	if limit <= 0 {
		limit = 100
	}
	var tenantModels []TenantModel
	if err := r.db.WithContext(ctx).
		Where("cycle_end <= ?", now).
		Order("cycle_end ASC").
		Limit(limit).
		Find(&tenantModels).Error; err != nil {
		return nil, err
	}

	tenants := make([]identity.Tenant, len(tenantModels))
	for i := range tenantModels {
		tenants[i] = *tenantModels[i].ToEntity()
	}
	return tenants, nil
}

// Save creates or updates a tenant
func (r *GormTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	model := TenantModelFromEntity(tenant)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete deletes a tenant; its usage events and billing periods go with it
// through the schema's cascades
func (r *GormTenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&TenantModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts tenants matching the filter
func (r *GormTenantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&TenantModel{})

	if filter.Search != "" {
		keyword := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", keyword, keyword)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByEmail checks if a tenant with the given email exists
func (r *GormTenantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// IncrementUsage adds qty to the tenant's cached usage counter in a single
// UPDATE, avoiding a read-modify-write race between concurrent recorders
func (r *GormTenantRepository) IncrementUsage(ctx context.Context, id uuid.UUID, qty int64) error {
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TryConsume atomically reserves qty against the tenant's rate limit.
// Returns false when the reservation would push usage past the limit.
func (r *GormTenantRepository) TryConsume(ctx context.Context, id uuid.UUID, qty int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("id = ?", id).
		Where("usage_count + ? <= rate_limit", qty).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AdvanceCycleWindow installs the tenant's new billing window with a
// compare-and-swap on the previous cycle end. Exactly one of any number of
// concurrent callers sees true; the rest must reload and retry.
func (r *GormTenantRepository) AdvanceCycleWindow(ctx context.Context, tenant *identity.Tenant, prevCycleEnd time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&TenantModel{}).
		Where("id = ?", tenant.ID).
		Where("cycle_end = ?", prevCycleEnd).
		Updates(map[string]interface{}{
			"cycle_start": tenant.CycleStart,
			"cycle_end":   tenant.CycleEnd,
			"usage_count": tenant.UsageCount,
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// isUniqueViolation reports whether err is a unique constraint violation,
// covering both the Postgres and SQLite drivers
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
