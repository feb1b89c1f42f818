package auth

import (
	"context"
	"testing"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

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

var _ identity.TenantRepository = (*mockTenantRepository)(nil)

// memoryKeyCache is an in-process KeyCache for tests
type memoryKeyCache struct {
	entries map[string]uuid.UUID
}

func newMemoryKeyCache() *memoryKeyCache {
	return &memoryKeyCache{entries: make(map[string]uuid.UUID)}
}

func (c *memoryKeyCache) Get(_ context.Context, keyHash string) (uuid.UUID, bool, error) {
	id, ok := c.entries[keyHash]
	return id, ok, nil
}

func (c *memoryKeyCache) Set(_ context.Context, keyHash string, tenantID uuid.UUID) error {
	c.entries[keyHash] = tenantID
	return nil
}

func (c *memoryKeyCache) Invalidate(_ context.Context, keyHash string) error {
	delete(c.entries, keyHash)
	return nil
}

func authTestTenant(t *testing.T) (*identity.Tenant, string) {
	t.Helper()
	plan, err := billing.GetPlan(billing.PlanStarter)
	require.NoError(t, err)
	rawKey, hash, err := identity.GenerateAPIKey()
	require.NoError(t, err)
	tenant, err := identity.NewTenant("Acme", "ops@acme.test", plan, billing.BillingCycleMonthly,
		hash, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return tenant, rawKey
}

func TestAPIKeyResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects malformed keys without touching the store", func(t *testing.T) {
		repo := new(mockTenantRepository)
		resolver := NewAPIKeyResolver(repo, nil, zap.NewNop())

		_, err := resolver.Resolve(ctx, "not-a-key")
		assert.ErrorIs(t, err, identity.ErrInvalidAPIKey)
		repo.AssertNotCalled(t, "FindByAPIKeyHash", mock.Anything, mock.Anything)
	})

	t.Run("resolves by store when cache misses", func(t *testing.T) {
		repo := new(mockTenantRepository)
		cache := newMemoryKeyCache()
		resolver := NewAPIKeyResolver(repo, cache, zap.NewNop())

		tenant, rawKey := authTestTenant(t)
		repo.On("FindByAPIKeyHash", mock.Anything, tenant.APIKeyHash).Return(tenant, nil)

		resolved, err := resolver.Resolve(ctx, rawKey)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, resolved.ID)

		// the lookup landed in the cache
		cached, ok, err := cache.Get(ctx, tenant.APIKeyHash)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, tenant.ID, cached)
	})

	t.Run("serves cached lookups via FindByID", func(t *testing.T) {
		repo := new(mockTenantRepository)
		cache := newMemoryKeyCache()
		resolver := NewAPIKeyResolver(repo, cache, zap.NewNop())

		tenant, rawKey := authTestTenant(t)
		require.NoError(t, cache.Set(ctx, tenant.APIKeyHash, tenant.ID))
		repo.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)

		resolved, err := resolver.Resolve(ctx, rawKey)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, resolved.ID)
		repo.AssertNotCalled(t, "FindByAPIKeyHash", mock.Anything, mock.Anything)
	})

	t.Run("drops stale cache entry after key rotation", func(t *testing.T) {
		repo := new(mockTenantRepository)
		cache := newMemoryKeyCache()
		resolver := NewAPIKeyResolver(repo, cache, zap.NewNop())

		tenant, oldRawKey := authTestTenant(t)
		oldHash := tenant.APIKeyHash
		require.NoError(t, cache.Set(ctx, oldHash, tenant.ID))

		// tenant now carries a rotated hash
		_, newHash, err := identity.GenerateAPIKey()
		require.NoError(t, err)
		require.NoError(t, tenant.RotateAPIKey(newHash))

		repo.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)
		repo.On("FindByAPIKeyHash", mock.Anything, oldHash).Return(nil, shared.ErrNotFound)

		_, err = resolver.Resolve(ctx, oldRawKey)
		assert.ErrorIs(t, err, identity.ErrInvalidAPIKey)

		_, ok, err := cache.Get(ctx, oldHash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown key maps to ErrInvalidAPIKey", func(t *testing.T) {
		repo := new(mockTenantRepository)
		resolver := NewAPIKeyResolver(repo, nil, zap.NewNop())

		_, rawKey := authTestTenant(t)
		repo.On("FindByAPIKeyHash", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)

		_, err := resolver.Resolve(ctx, rawKey)
		assert.ErrorIs(t, err, identity.ErrInvalidAPIKey)
	})
}

func TestAdminTokenVerifier(t *testing.T) {
	v := NewAdminTokenVerifier("super-secret-admin-token")

	assert.True(t, v.Verify("super-secret-admin-token"))
	assert.False(t, v.Verify("wrong"))
	assert.False(t, v.Verify(""))

	// empty configured token disables admin access
	disabled := NewAdminTokenVerifier("")
	assert.False(t, disabled.Verify(""))
	assert.False(t, disabled.Verify("anything"))
}
