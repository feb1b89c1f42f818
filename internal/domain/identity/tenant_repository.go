package identity

import (
	"context"
	"time"

	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantRepository defines the interface for tenant persistence
type TenantRepository interface {
	// FindByID finds a tenant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindByEmail finds a tenant by its unique email
	FindByEmail(ctx context.Context, email string) (*Tenant, error)

	// FindByAPIKeyHash finds a tenant by the hash of its API key
	FindByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error)

	// FindAll finds all tenants matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Tenant, error)

	// FindWithElapsedCycle finds tenants whose billing window closed at
	// or before now. Used by the background reconcile sweep.
	FindWithElapsedCycle(ctx context.Context, now time.Time, limit int) ([]Tenant, error)

	// Save creates or updates a tenant
	Save(ctx context.Context, tenant *Tenant) error

	// Delete deletes a tenant
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts tenants matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// ExistsByEmail checks if a tenant with the given email exists
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// IncrementUsage atomically adds qty to the cached usage counter
	IncrementUsage(ctx context.Context, id uuid.UUID, qty int64) error

	// TryConsume atomically adds qty to the cached counter only when the
	// result stays at or under the rate limit. Returns false when the
	// reservation would exceed the limit. This is the strict gate mode.
	TryConsume(ctx context.Context, id uuid.UUID, qty int64) (bool, error)

	// AdvanceCycleWindow persists a cycle rollover with a compare-and-swap
	// on the previous cycle end. Returns false when another process rolled
	// the window first; callers reload the tenant and retry.
	AdvanceCycleWindow(ctx context.Context, tenant *Tenant, prevCycleEnd time.Time) (bool, error)
}
