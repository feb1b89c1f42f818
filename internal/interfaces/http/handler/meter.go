package handler

import (
	"net/http"
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/autoseo/backend/internal/infrastructure/telemetry"
	"github.com/autoseo/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MeterHandler is the hot path: every metered request a tenant makes goes
// through here. It gates the request against the tenant's plan limit and,
// when allowed, appends the matching ledger event.
type MeterHandler struct {
	BaseHandler
	gate        *appbilling.RateGateService
	ledger      *appbilling.LedgerService
	metrics     *telemetry.MeteringMetrics
	idempotency shared.IdempotencyStore
	idemTTL     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewMeterHandler creates a new meter handler. metrics may be nil
func NewMeterHandler(
	gate *appbilling.RateGateService,
	ledger *appbilling.LedgerService,
	metrics *telemetry.MeteringMetrics,
	logger *zap.Logger,
) *MeterHandler {
	return &MeterHandler{
		gate:    gate,
		ledger:  ledger,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler clock, for tests
func (h *MeterHandler) WithClock(now func() time.Time) *MeterHandler {
	h.now = now
	return h
}

// WithIdempotencyStore enables Idempotency-Key deduplication. Retried
// requests carrying a key already claimed within ttl are acknowledged
// without recording a second event.
func (h *MeterHandler) WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) *MeterHandler {
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	h.idempotency = store
	h.idemTTL = ttl
	return h
}

// IdempotencyKeyHeader carries a client-chosen key that makes a metered
// request safe to retry
const IdempotencyKeyHeader = "Idempotency-Key"

// MeterRequest is the body of a metered usage report
type MeterRequest struct {
	Kind     string         `json:"kind" binding:"required"`
	Quantity int64          `json:"quantity" binding:"omitempty,min=1"`
	Metadata map[string]any `json:"metadata"`
}

// MeterResponse is returned when the request was admitted
type MeterResponse struct {
	Allowed      bool      `json:"allowed"`
	EventID      string    `json:"event_id"`
	Kind         string    `json:"kind"`
	Quantity     int64     `json:"quantity"`
	PeriodKey    string    `json:"period_key"`
	CurrentUsage int64     `json:"current_usage"`
	Limit        int64     `json:"limit"`
	Remaining    int64     `json:"remaining"`
	RecordedAt   time.Time `json:"recorded_at"`
	Duplicate    bool      `json:"duplicate,omitempty"`
}

// Meter gates and records one metered request for the authenticated tenant.
// Denials carry the gate decision in the response body so clients can back
// off until retry_after.
func (h *MeterHandler) Meter(c *gin.Context) {
	tenant, err := getTenant(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req MeterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	kind := billing.UsageKind(req.Kind)
	if !kind.IsValid() {
		h.BadRequest(c, "Invalid usage kind: "+req.Kind)
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	now := h.now()

	if h.idempotency != nil {
		if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
			// keys are scoped per tenant so clients cannot collide
			fresh, err := h.idempotency.MarkProcessed(ctx, tenant.ID.String()+":"+key, h.idemTTL)
			if err != nil {
				h.logger.Warn("Idempotency store unavailable, processing without dedup",
					zap.String("tenant_id", tenant.ID.String()),
					zap.Error(err),
				)
			} else if !fresh {
				h.Success(c, MeterResponse{
					Allowed:   true,
					Kind:      req.Kind,
					Quantity:  req.Quantity,
					Duplicate: true,
				})
				return
			}
		}
	}

	decision, err := h.gate.Check(ctx, tenant.ID, req.Quantity, now)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if !decision.Allowed {
		if h.metrics != nil {
			h.metrics.RecordGateDenied(ctx, tenant.ID, tenant.Plan, string(decision.Reason))
		}
		h.denyRequest(c, decision)
		return
	}

	event, err := h.ledger.Record(ctx, appbilling.RecordUsageInput{
		TenantID:        tenant.ID,
		Kind:            kind,
		Quantity:        req.Quantity,
		Metadata:        req.Metadata,
		CounterReserved: decision.Consumed,
	}, now)
	if err != nil {
		h.logger.Error("Failed to record gated usage",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("kind", req.Kind),
			zap.Error(err),
		)
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordGateAllowed(ctx, tenant.ID, tenant.Plan)
		h.metrics.RecordUsage(ctx, tenant.ID, string(kind), req.Quantity)
	}

	// strict mode already folded the reservation into the decision
	currentUsage := decision.CurrentUsage
	remaining := decision.Remaining
	if !decision.Consumed {
		currentUsage += req.Quantity
		remaining = decision.Limit - currentUsage
		if remaining < 0 {
			remaining = 0
		}
	}

	h.Success(c, MeterResponse{
		Allowed:      true,
		EventID:      event.ID.String(),
		Kind:         string(event.Kind),
		Quantity:     event.Quantity,
		PeriodKey:    event.PeriodKey,
		CurrentUsage: currentUsage,
		Limit:        decision.Limit,
		Remaining:    remaining,
		RecordedAt:   event.RecordedAt,
	})
}

// denyRequest writes the denial with the gate decision attached so
// callers see their usage position without a second request
func (h *MeterHandler) denyRequest(c *gin.Context, decision *appbilling.GateDecision) {
	status := http.StatusTooManyRequests
	code := dto.ErrCodeRateLimited
	message := "Usage limit exceeded for the current billing cycle"
	if decision.Reason == appbilling.DenySubscriptionInactive {
		status = http.StatusPaymentRequired
		code = dto.ErrCodeSubscriptionInactive
		message = "Subscription is not active"
	}

	if decision.RetryAfter != nil {
		seconds := int64(time.Until(*decision.RetryAfter).Seconds())
		if seconds < 0 {
			seconds = 0
		}
		c.Header("Retry-After", formatSeconds(seconds))
	}

	resp := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c))
	resp.Data = decision
	c.JSON(status, resp)
}
