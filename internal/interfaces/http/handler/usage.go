package handler

import (
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
)

// UsageHandler answers tenant-facing usage queries. Summaries come from
// the ledger, so the numbers here are the ones that end up on the invoice.
type UsageHandler struct {
	BaseHandler
	ledger    *appbilling.LedgerService
	reporting *appbilling.ReportingService
	now       func() time.Time
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(
	ledger *appbilling.LedgerService,
	reporting *appbilling.ReportingService,
) *UsageHandler {
	return &UsageHandler{
		ledger:    ledger,
		reporting: reporting,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler clock, for tests
func (h *UsageHandler) WithClock(now func() time.Time) *UsageHandler {
	h.now = now
	return h
}

// UsageEventsRequest filters the ledger event listing
type UsageEventsRequest struct {
	PeriodKey string `form:"period_key"`
	Kind      string `form:"kind"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// UsageEventResponse is one ledger entry
type UsageEventResponse struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Quantity   int64          `json:"quantity"`
	PeriodKey  string         `json:"period_key"`
	RecordedAt time.Time      `json:"recorded_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// GetSummary returns the authenticated tenant's position in the current
// billing window, including the estimated overage were the cycle to close now
func (h *UsageHandler) GetSummary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	summary, err := h.reporting.GetUsageSummary(c.Request.Context(), tenantID, h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListEvents returns the authenticated tenant's ledger events, newest first
func (h *UsageHandler) ListEvents(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req UsageEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := billing.DefaultUsageEventFilter()
	if req.PeriodKey != "" {
		filter.PeriodKey = req.PeriodKey
	}
	if req.Kind != "" {
		kind := billing.UsageKind(req.Kind)
		if !kind.IsValid() {
			h.BadRequest(c, "Invalid usage kind: "+req.Kind)
			return
		}
		filter.Kind = kind
	}
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}

	result, err := h.ledger.ListEvents(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	events := make([]UsageEventResponse, 0, len(result.Items))
	for _, e := range result.Items {
		events = append(events, UsageEventResponse{
			ID:         e.ID.String(),
			Kind:       string(e.Kind),
			Quantity:   e.Quantity,
			PeriodKey:  e.PeriodKey,
			RecordedAt: e.RecordedAt,
			Metadata:   e.Metadata,
		})
	}
	h.SuccessWithMeta(c, events, result.Total, result.Page, result.PageSize)
}
