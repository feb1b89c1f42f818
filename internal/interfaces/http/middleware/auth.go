package middleware

import (
	"net/http"
	"strings"

	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/infrastructure/auth"
	"github.com/autoseo/backend/internal/infrastructure/logger"
	"github.com/autoseo/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Auth context keys
const (
	AuthTenantKey   = "auth_tenant"
	AuthTenantIDKey = "auth_tenant_id"
	APIKeyHeaderKey = "X-API-Key"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// APIKeyMiddlewareConfig holds configuration for API key middleware
type APIKeyMiddlewareConfig struct {
	// Resolver maps raw API keys to tenants
	Resolver *auth.APIKeyResolver
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultAPIKeyConfig returns default API key middleware configuration
func DefaultAPIKeyConfig(resolver *auth.APIKeyResolver) APIKeyMiddlewareConfig {
	return APIKeyMiddlewareConfig{
		Resolver: resolver,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/api/v1/health",
		},
	}
}

// APIKeyAuthMiddleware authenticates requests by API key. The key is read
// from the X-API-Key header, falling back to a bearer token. On success the
// resolved tenant is stored in the gin context for handlers.
func APIKeyAuthMiddleware(resolver *auth.APIKeyResolver) gin.HandlerFunc {
	return APIKeyAuthMiddlewareWithConfig(DefaultAPIKeyConfig(resolver))
}

// APIKeyAuthMiddlewareWithConfig authenticates requests with custom config
func APIKeyAuthMiddlewareWithConfig(cfg APIKeyMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}

		rawKey := extractAPIKey(c)
		if rawKey == "" {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "API key required")
			return
		}

		tenant, err := cfg.Resolver.Resolve(c.Request.Context(), rawKey)
		if err != nil {
			log.Debug("API key rejected",
				zap.String("path", path),
				zap.Error(err),
			)
			abortUnauthorized(c, dto.ErrCodeInvalidAPIKey, "Invalid API key")
			return
		}

		c.Set(AuthTenantKey, tenant)
		c.Set(AuthTenantIDKey, tenant.ID.String())

		// downstream logs carry the tenant scope
		ctx, scoped := logger.WithTenantID(c.Request.Context(), log, tenant.ID.String())
		ctx, _ = logger.WithPlan(ctx, scoped, tenant.Plan)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// extractAPIKey reads the API key from X-API-Key or a bearer token
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeaderKey); key != "" {
		return key
	}
	header := c.GetHeader(AuthHeaderKey)
	if strings.HasPrefix(header, BearerPrefix) {
		return strings.TrimPrefix(header, BearerPrefix)
	}
	return ""
}

// abortUnauthorized rejects the request with a 401 error response
func abortUnauthorized(c *gin.Context, code, message string) {
	requestID := c.GetString("request_id")
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// GetAuthTenant returns the authenticated tenant from the gin context,
// nil when the request was not authenticated
func GetAuthTenant(c *gin.Context) *identity.Tenant {
	if v, exists := c.Get(AuthTenantKey); exists {
		if tenant, ok := v.(*identity.Tenant); ok {
			return tenant
		}
	}
	return nil
}

// GetAuthTenantID returns the authenticated tenant's ID as a string
func GetAuthTenantID(c *gin.Context) string {
	return c.GetString(AuthTenantIDKey)
}
