package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DenyReason explains why the gate refused a metered request
type DenyReason string

const (
	DenySubscriptionInactive DenyReason = "subscription_inactive"
	DenyRateLimitExceeded    DenyReason = "rate_limit_exceeded"
)

// RateLimitError is returned by strict-mode consumption when the
// reservation would exceed the limit
type RateLimitError struct {
	CurrentUsage int64
	Limit        int64
	Message      string
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return e.Message
}

// HTTPStatusCode returns 429 Too Many Requests
func (e *RateLimitError) HTTPStatusCode() int {
	return http.StatusTooManyRequests
}

// NewRateLimitError creates a new RateLimitError
func NewRateLimitError(currentUsage, limit int64) *RateLimitError {
	return &RateLimitError{
		CurrentUsage: currentUsage,
		Limit:        limit,
		Message:      fmt.Sprintf("Rate limit exceeded: usage %d of %d", currentUsage, limit),
	}
}

// GateDecision is the outcome of a rate gate check
type GateDecision struct {
	Allowed      bool       `json:"allowed"`
	Reason       DenyReason `json:"reason,omitempty"`
	CurrentUsage int64      `json:"current_usage"`
	Limit        int64      `json:"limit"`
	Remaining    int64      `json:"remaining"`
	RetryAfter   *time.Time `json:"retry_after,omitempty"`

	// Consumed marks that strict mode already charged the cached counter
	// for this request; the ledger append must not charge it again.
	Consumed bool `json:"-"`
}

// Err maps a denial to its domain error, nil when allowed
func (d *GateDecision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case DenySubscriptionInactive:
		return identity.ErrSubscriptionInactive
	case DenyRateLimitExceeded:
		return shared.NewDomainError("RATE_LIMIT_EXCEEDED", "Rate limit exceeded for the current billing cycle")
	default:
		return shared.ErrForbidden
	}
}

// RateGateService decides whether a tenant may perform a metered operation.
// The default mode is a soft limit: the check reads the cached counter and
// the matching ledger append happens afterwards, so a concurrent burst can
// land a handful of events past the limit. Those events are still ledgered
// and priced as overage. Strict mode reserves the quantity atomically at
// the cost of one conditional update per request.
type RateGateService struct {
	tenantRepo identity.TenantRepository
	cycles     *CycleService
	logger     *zap.Logger

	strictReserve bool
}

// RateGateConfig contains configuration for RateGateService
type RateGateConfig struct {
	StrictReserve bool
}

// DefaultRateGateConfig returns default configuration
func DefaultRateGateConfig() RateGateConfig {
	return RateGateConfig{StrictReserve: false}
}

// NewRateGateService creates a new RateGateService
func NewRateGateService(
	tenantRepo identity.TenantRepository,
	cycles *CycleService,
	logger *zap.Logger,
	config RateGateConfig,
) *RateGateService {
	return &RateGateService{
		tenantRepo:    tenantRepo,
		cycles:        cycles,
		logger:        logger,
		strictReserve: config.StrictReserve,
	}
}

// StrictReserve reports whether the gate runs in strict reservation mode
func (s *RateGateService) StrictReserve() bool {
	return s.strictReserve
}

// Check gates a metered request of the given quantity. The tenant's window
// is reconciled first so a request arriving after cycle end is judged
// against the fresh window, never the stale counter.
func (s *RateGateService) Check(ctx context.Context, tenantID uuid.UUID, qty int64, now time.Time) (*GateDecision, error) {
	if qty <= 0 {
		qty = 1
	}

	tenant, err := s.cycles.ReconcileByID(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	if !tenant.IsActive() {
		s.logger.Debug("Denied inactive subscription",
			zap.String("tenant_id", tenantID.String()),
			zap.String("status", string(tenant.SubscriptionStatus)))
		return &GateDecision{
			Allowed:      false,
			Reason:       DenySubscriptionInactive,
			CurrentUsage: tenant.UsageCount,
			Limit:        tenant.RateLimit,
			Remaining:    tenant.Remaining(),
		}, nil
	}

	if tenant.UsageCount+qty > tenant.RateLimit {
		retryAfter := tenant.CycleEnd
		return &GateDecision{
			Allowed:      false,
			Reason:       DenyRateLimitExceeded,
			CurrentUsage: tenant.UsageCount,
			Limit:        tenant.RateLimit,
			Remaining:    tenant.Remaining(),
			RetryAfter:   &retryAfter,
		}, nil
	}

	decision := &GateDecision{
		Allowed:      true,
		CurrentUsage: tenant.UsageCount,
		Limit:        tenant.RateLimit,
		Remaining:    tenant.Remaining(),
	}

	if s.strictReserve {
		consumed, err := s.tenantRepo.TryConsume(ctx, tenantID, qty)
		if err != nil {
			return nil, err
		}
		if !consumed {
			// another request took the last slot between the read and
			// the reservation
			retryAfter := tenant.CycleEnd
			return &GateDecision{
				Allowed:      false,
				Reason:       DenyRateLimitExceeded,
				CurrentUsage: tenant.RateLimit,
				Limit:        tenant.RateLimit,
				Remaining:    0,
				RetryAfter:   &retryAfter,
			}, nil
		}
		decision.Consumed = true
		decision.CurrentUsage += qty
		decision.Remaining = max64(0, tenant.RateLimit-decision.CurrentUsage)
	}

	return decision, nil
}

// CheckByAPIKeyHash resolves a tenant by key hash and gates the request
func (s *RateGateService) CheckByAPIKeyHash(ctx context.Context, hash string, qty int64, now time.Time) (*GateDecision, *identity.Tenant, error) {
	tenant, err := s.tenantRepo.FindByAPIKeyHash(ctx, hash)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil, identity.ErrInvalidAPIKey
		}
		return nil, nil, err
	}

	decision, err := s.Check(ctx, tenant.ID, qty, now)
	if err != nil {
		return nil, nil, err
	}
	return decision, tenant, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
