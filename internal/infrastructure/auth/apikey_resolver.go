package auth

import (
	"context"
	"errors"

	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KeyCache caches API key hash to tenant ID lookups
type KeyCache interface {
	Get(ctx context.Context, keyHash string) (uuid.UUID, bool, error)
	Set(ctx context.Context, keyHash string, tenantID uuid.UUID) error
	Invalidate(ctx context.Context, keyHash string) error
}

// APIKeyResolver authenticates requests by their X-API-Key header value.
// Lookups go through an optional cache before the tenant store; cache
// failures degrade to a direct store lookup rather than failing the request.
type APIKeyResolver struct {
	tenantRepo identity.TenantRepository
	cache      KeyCache
	logger     *zap.Logger
}

// NewAPIKeyResolver creates a new resolver. cache may be nil to disable
// caching entirely.
func NewAPIKeyResolver(tenantRepo identity.TenantRepository, cache KeyCache, logger *zap.Logger) *APIKeyResolver {
	return &APIKeyResolver{
		tenantRepo: tenantRepo,
		cache:      cache,
		logger:     logger,
	}
}

// Resolve maps a raw API key to its tenant.
// Returns identity.ErrInvalidAPIKey for malformed or unknown keys.
func (r *APIKeyResolver) Resolve(ctx context.Context, rawKey string) (*identity.Tenant, error) {
	if !identity.ValidAPIKeyFormat(rawKey) {
		return nil, identity.ErrInvalidAPIKey
	}
	keyHash := identity.HashAPIKey(rawKey)

	if r.cache != nil {
		if tenant, ok := r.fromCache(ctx, keyHash); ok {
			return tenant, nil
		}
	}

	tenant, err := r.tenantRepo.FindByAPIKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.ErrInvalidAPIKey
		}
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, keyHash, tenant.ID); err != nil {
			r.logger.Warn("Failed to cache api key lookup", zap.Error(err))
		}
	}
	return tenant, nil
}

// Invalidate drops the cache entry for a key hash after rotation
func (r *APIKeyResolver) Invalidate(ctx context.Context, keyHash string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, keyHash); err != nil {
		r.logger.Warn("Failed to invalidate api key cache", zap.Error(err))
	}
}

func (r *APIKeyResolver) fromCache(ctx context.Context, keyHash string) (*identity.Tenant, bool) {
	tenantID, ok, err := r.cache.Get(ctx, keyHash)
	if err != nil {
		r.logger.Warn("API key cache unavailable", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	tenant, err := r.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		// Stale entry pointing at a deleted tenant
		if errors.Is(err, shared.ErrNotFound) {
			r.Invalidate(ctx, keyHash)
		}
		return nil, false
	}
	// The key was rotated after the entry was cached
	if tenant.APIKeyHash != keyHash {
		r.Invalidate(ctx, keyHash)
		return nil, false
	}
	return tenant, true
}
