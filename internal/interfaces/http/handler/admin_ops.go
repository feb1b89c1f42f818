package handler

import (
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminOpsHandler exposes the background jobs as admin endpoints so
// operators can run a sweep or prune without waiting for the scheduler
type AdminOpsHandler struct {
	BaseHandler
	cycles    *appbilling.CycleService
	retention *appbilling.RetentionService
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminOpsHandler creates a new admin operations handler
func NewAdminOpsHandler(
	cycles *appbilling.CycleService,
	retention *appbilling.RetentionService,
	logger *zap.Logger,
) *AdminOpsHandler {
	return &AdminOpsHandler{
		cycles:    cycles,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler clock, for tests
func (h *AdminOpsHandler) WithClock(now func() time.Time) *AdminOpsHandler {
	h.now = now
	return h
}

// SweepRequest bounds one manual sweep run
type SweepRequest struct {
	BatchSize int `json:"batch_size" binding:"omitempty,min=1,max=1000"`
}

// SweepCycles rolls over every tenant whose billing window has elapsed
func (h *AdminOpsHandler) SweepCycles(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 100
	}

	swept, err := h.cycles.SweepElapsed(c.Request.Context(), h.now(), req.BatchSize)
	if err != nil {
		h.logger.Error("Manual cycle sweep failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"swept": swept})
}

// ReconcileTenant rolls over one tenant's elapsed windows immediately
func (h *AdminOpsHandler) ReconcileTenant(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	tenant, err := h.cycles.ReconcileByID(c.Request.Context(), id, h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"tenant_id":   tenant.ID,
		"cycle_start": tenant.CycleStart,
		"cycle_end":   tenant.CycleEnd,
		"usage_count": tenant.UsageCount,
	})
}

// PruneEvents deletes ledger events past the retention horizon
func (h *AdminOpsHandler) PruneEvents(c *gin.Context) {
	result, err := h.retention.PruneOldEvents(c.Request.Context(), h.now())
	if err != nil {
		h.logger.Error("Manual retention prune failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
