package handler

import (
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	appidentity "github.com/autoseo/backend/internal/application/identity"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/autoseo/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TenantHandler covers tenant self-service and the admin surface
type TenantHandler struct {
	BaseHandler
	tenants *appidentity.TenantService
	cycles  *appbilling.CycleService
	logger  *zap.Logger
	now     func() time.Time
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(
	tenants *appidentity.TenantService,
	cycles *appbilling.CycleService,
	logger *zap.Logger,
) *TenantHandler {
	return &TenantHandler{
		tenants: tenants,
		cycles:  cycles,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler clock, for tests
func (h *TenantHandler) WithClock(now func() time.Time) *TenantHandler {
	h.now = now
	return h
}

// RegisterTenantRequest is the public signup body
type RegisterTenantRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=200"`
	Email        string `json:"email" binding:"required,email"`
	Plan         string `json:"plan" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"omitempty,oneof=monthly yearly"`
}

// ChangePlanRequest selects a new plan for a tenant
type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ChangeStatusRequest moves a tenant's subscription status
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active past_due canceled"`
}

// Register creates a tenant and returns its API key. The raw key appears
// in this response only; afterwards the store holds nothing but the hash.
func (h *TenantHandler) Register(c *gin.Context) {
	var req RegisterTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.tenants.Register(c.Request.Context(), appidentity.RegisterTenantInput{
		Name:         req.Name,
		Email:        req.Email,
		Plan:         req.Plan,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.logger.Info("Tenant registered",
		zap.String("tenant_id", result.ID.String()),
		zap.String("plan", result.Plan))
	h.Created(c, result)
}

// GetCurrent returns the authenticated tenant's own record
func (h *TenantHandler) GetCurrent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	tenant, err := h.tenants.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// List returns all tenants, paginated. Admin only.
func (h *TenantHandler) List(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	}
	result, err := h.tenants.ListTenants(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get returns one tenant by ID. Admin only.
func (h *TenantHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	tenant, err := h.tenants.GetTenant(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// ChangePlan moves a tenant to another plan. The new limit applies to the
// current cycle immediately; usage already recorded stays. Admin only.
func (h *TenantHandler) ChangePlan(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}
	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tenant, err := h.tenants.ChangePlan(c.Request.Context(), id, req.Plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// ChangeStatus sets a tenant's subscription status. Admin only.
func (h *TenantHandler) ChangeStatus(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tenant, err := h.tenants.ChangeStatus(c.Request.Context(), id, identity.SubscriptionStatus(req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// RotateAPIKey issues a fresh API key for a tenant. The old key stops
// resolving once its cache entry is dropped. Admin only.
func (h *TenantHandler) RotateAPIKey(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	result, err := h.tenants.RotateAPIKey(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ResetCycle force-closes the tenant's current billing window and opens a
// fresh one starting now. Admin only.
func (h *TenantHandler) ResetCycle(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	tenant, err := h.cycles.ResetCycle(c.Request.Context(), id, h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appidentity.ToTenantDTO(tenant))
}

// Delete removes a tenant along with its ledger and history. Admin only.
func (h *TenantHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	if err := h.tenants.DeleteTenant(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
