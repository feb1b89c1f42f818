package handler

import (
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BillingHandler serves closed-period history, the tenant dashboard and
// the admin payment-status transitions
type BillingHandler struct {
	BaseHandler
	reporting *appbilling.ReportingService
	invoicing *appbilling.InvoicingService
	now       func() time.Time
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(reporting *appbilling.ReportingService, invoicing *appbilling.InvoicingService) *BillingHandler {
	return &BillingHandler{
		reporting: reporting,
		invoicing: invoicing,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler clock, for tests
func (h *BillingHandler) WithClock(now func() time.Time) *BillingHandler {
	h.now = now
	return h
}

// BillingHistoryRequest paginates the closed-period listing
type BillingHistoryRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetHistory returns the authenticated tenant's closed billing periods,
// newest first, each with its priced overage
func (h *BillingHandler) GetHistory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req BillingHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	result, err := h.reporting.GetBillingHistory(c.Request.Context(), tenantID, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetDashboard returns the tenant overview: subscription, current window
// usage and the most recent closed periods in one response
func (h *BillingHandler) GetDashboard(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	dashboard, err := h.reporting.GetDashboard(c.Request.Context(), tenantID, h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dashboard)
}

// UpdatePeriodStatusRequest names the target payment state
type UpdatePeriodStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=invoiced paid"`
}

// UpdatePeriodStatus moves an archived period to invoiced or paid.
// Admin only.
func (h *BillingHandler) UpdatePeriodStatus(c *gin.Context) {
	tenantID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}
	periodID, err := parseIDParam(c, "period_id")
	if err != nil {
		h.BadRequest(c, "Invalid period ID format")
		return
	}
	var req UpdatePeriodStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	var record *billing.BillingPeriodRecord
	switch req.Status {
	case "paid":
		record, err = h.invoicing.MarkPaid(c.Request.Context(), tenantID, periodID, h.now())
	default:
		record, err = h.invoicing.MarkInvoiced(c.Request.Context(), tenantID, periodID)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PeriodStatusResponse{
		ID:     record.ID,
		Status: string(record.Status),
		PaidAt: record.PaidAt,
	})
}

// PeriodStatusResponse reports the period's payment state after a transition
type PeriodStatusResponse struct {
	ID     uuid.UUID  `json:"id"`
	Status string     `json:"status"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}
