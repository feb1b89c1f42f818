package billing

import (
	"context"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock implementations

type mockTenantRepository struct {
	mock.Mock
}

func (m *mockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *mockTenantRepository) FindByEmail(ctx context.Context, email string) (*identity.Tenant, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *mockTenantRepository) FindByAPIKeyHash(ctx context.Context, hash string) (*identity.Tenant, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *mockTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Tenant), args.Error(1)
}

func (m *mockTenantRepository) FindWithElapsedCycle(ctx context.Context, now time.Time, limit int) ([]identity.Tenant, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Tenant), args.Error(1)
}

func (m *mockTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *mockTenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTenantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTenantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockTenantRepository) IncrementUsage(ctx context.Context, id uuid.UUID, qty int64) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *mockTenantRepository) TryConsume(ctx context.Context, id uuid.UUID, qty int64) (bool, error) {
	args := m.Called(ctx, id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *mockTenantRepository) AdvanceCycleWindow(ctx context.Context, tenant *identity.Tenant, prevCycleEnd time.Time) (bool, error) {
	args := m.Called(ctx, tenant, prevCycleEnd)
	return args.Bool(0), args.Error(1)
}

type mockUsageEventRepository struct {
	mock.Mock
}

func (m *mockUsageEventRepository) Save(ctx context.Context, event *billing.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockUsageEventRepository) SumForPeriod(ctx context.Context, tenantID uuid.UUID, periodKey string) (int64, error) {
	args := m.Called(ctx, tenantID, periodKey)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsageEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter billing.UsageEventFilter) ([]billing.UsageEvent, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.UsageEvent), args.Error(1)
}

func (m *mockUsageEventRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID, filter billing.UsageEventFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsageEventRepository) DeleteForTenantBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockBillingPeriodRepository struct {
	mock.Mock
}

func (m *mockBillingPeriodRepository) Save(ctx context.Context, record *billing.BillingPeriodRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockBillingPeriodRepository) Update(ctx context.Context, record *billing.BillingPeriodRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockBillingPeriodRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.BillingPeriodRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingPeriodRecord), args.Error(1)
}

func (m *mockBillingPeriodRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]billing.BillingPeriodRecord, error) {
	args := m.Called(ctx, tenantID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.BillingPeriodRecord), args.Error(1)
}

func (m *mockBillingPeriodRepository) FindByTenantAndStart(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (*billing.BillingPeriodRecord, error) {
	args := m.Called(ctx, tenantID, periodStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillingPeriodRecord), args.Error(1)
}

func (m *mockBillingPeriodRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

// interface guards
var (
	_ identity.TenantRepository       = (*mockTenantRepository)(nil)
	_ billing.UsageEventRepository    = (*mockUsageEventRepository)(nil)
	_ billing.BillingPeriodRepository = (*mockBillingPeriodRepository)(nil)
)
