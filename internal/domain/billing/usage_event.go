package billing

import (
	"time"

	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UsageKind identifies the kind of metered operation
type UsageKind string

const (
	UsageKindAPIRequest UsageKind = "api_request"
	UsageKindAnalysis   UsageKind = "analysis"
	UsageKindExport     UsageKind = "export"
)

// IsValid reports whether the kind is known
func (k UsageKind) IsValid() bool {
	switch k {
	case UsageKindAPIRequest, UsageKindAnalysis, UsageKindExport:
		return true
	}
	return false
}

// Metadata holds additional context about a usage event
type Metadata map[string]any

// UsageEvent is one immutable entry in the usage ledger. Events are append
// only; corrections are made with new events. Summed per period key, the
// ledger is the ground truth for billing, the cached counter on the tenant
// is advisory.
type UsageEvent struct {
	shared.BaseEntity
	TenantID   uuid.UUID // The tenant this usage belongs to
	Kind       UsageKind // Kind of metered operation
	Quantity   int64     // Amount of usage (always positive)
	PeriodKey  string    // Billing bucket, the owning window's start instant in RFC 3339
	RecordedAt time.Time // When the usage occurred
	Metadata   Metadata  // Additional context about the event
}

// NewUsageEvent creates a new ledger event with validation
func NewUsageEvent(tenantID uuid.UUID, kind UsageKind, quantity int64, periodKey string) (*UsageEvent, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_USAGE_KIND", "Invalid usage kind")
	}
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	if periodKey == "" {
		return nil, shared.NewDomainError("INVALID_PERIOD_KEY", "Period key cannot be empty")
	}

	return &UsageEvent{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Kind:       kind,
		Quantity:   quantity,
		PeriodKey:  periodKey,
		RecordedAt: time.Now().UTC(),
		Metadata:   make(Metadata),
	}, nil
}

// WithMetadata adds a metadata entry to the event
func (e *UsageEvent) WithMetadata(key string, value any) *UsageEvent {
	if e.Metadata == nil {
		e.Metadata = make(Metadata)
	}
	e.Metadata[key] = value
	return e
}

// WithRecordedAt sets a custom recorded time (useful for backfills)
func (e *UsageEvent) WithRecordedAt(recordedAt time.Time) *UsageEvent {
	e.RecordedAt = recordedAt.UTC()
	return e
}
