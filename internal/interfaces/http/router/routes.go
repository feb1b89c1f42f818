package router

import (
	"github.com/autoseo/backend/internal/infrastructure/auth"
	"github.com/autoseo/backend/internal/interfaces/http/handler"
	"github.com/autoseo/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers bundles every handler the API mounts
type Handlers struct {
	System   *handler.SystemHandler
	Plans    *handler.PlanHandler
	Tenants  *handler.TenantHandler
	Meter    *handler.MeterHandler
	Usage    *handler.UsageHandler
	Billing  *handler.BillingHandler
	AdminOps *handler.AdminOpsHandler
}

// Authenticators bundles the request authentication dependencies
type Authenticators struct {
	APIKeys    *auth.APIKeyResolver
	AdminToken *auth.AdminTokenVerifier
}

// SetupRoutes mounts the full API surface on the engine.
//
// Three access tiers share the /api/v1 prefix: public endpoints (health,
// plan catalog, signup), tenant endpoints behind the API key middleware
// (meter, usage, billing, own record), and admin endpoints behind the
// operator token.
func SetupRoutes(engine *gin.Engine, h Handlers, a Authenticators) {
	// Liveness endpoints outside the versioned prefix
	engine.GET("/health", h.System.Health)
	engine.GET("/healthz", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	api := engine.Group("/api/v1")

	// Public tier
	api.GET("/health", h.System.Health)
	api.GET("/ping", h.System.Ping)
	api.GET("/system/info", h.System.GetSystemInfo)
	api.GET("/plans", h.Plans.List)
	api.GET("/plans/:id", h.Plans.Get)
	api.POST("/tenants", h.Tenants.Register)

	// Tenant tier, authenticated by API key
	authed := api.Group("")
	authed.Use(middleware.APIKeyAuthMiddleware(a.APIKeys))
	{
		authed.POST("/meter", h.Meter.Meter)
		authed.GET("/usage", h.Usage.GetSummary)
		authed.GET("/usage/events", h.Usage.ListEvents)
		authed.GET("/billing/history", h.Billing.GetHistory)
		authed.GET("/dashboard", h.Billing.GetDashboard)
		authed.GET("/tenant", h.Tenants.GetCurrent)
	}

	// Admin tier, authenticated by operator token
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(a.AdminToken))
	{
		admin.GET("/tenants", h.Tenants.List)
		admin.GET("/tenants/:id", h.Tenants.Get)
		admin.PUT("/tenants/:id/plan", h.Tenants.ChangePlan)
		admin.PUT("/tenants/:id/status", h.Tenants.ChangeStatus)
		admin.POST("/tenants/:id/rotate-key", h.Tenants.RotateAPIKey)
		admin.POST("/tenants/:id/reset-cycle", h.Tenants.ResetCycle)
		admin.POST("/tenants/:id/reconcile", h.AdminOps.ReconcileTenant)
		admin.PUT("/tenants/:id/periods/:period_id/status", h.Billing.UpdatePeriodStatus)
		admin.DELETE("/tenants/:id", h.Tenants.Delete)
		admin.POST("/ops/sweep-cycles", h.AdminOps.SweepCycles)
		admin.POST("/ops/prune-events", h.AdminOps.PruneEvents)
	}
}
