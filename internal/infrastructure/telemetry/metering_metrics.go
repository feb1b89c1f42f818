// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MeteringMetrics tracks the metering pipeline: gate decisions, recorded
// usage, cycle rollovers, and billed overage.
type MeteringMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	gateAllowedTotal   *Counter
	gateDeniedTotal    *Counter
	usageRecordedTotal *Counter
	cycleRolloverTotal *Counter
	overageCentsTotal  *Counter
}

// MeteringMetricsConfig holds configuration for metering metrics.
type MeteringMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewMeteringMetrics creates a new MeteringMetrics instance.
func NewMeteringMetrics(cfg MeteringMetricsConfig) (*MeteringMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mm := &MeteringMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error
	if mm.gateAllowedTotal, err = NewCounter(cfg.Meter,
		"metering_gate_allowed_total",
		"Total requests admitted by the rate gate",
		"{request}"); err != nil {
		return nil, &MetricsError{Op: "NewMeteringMetrics", Err: err.Error()}
	}
	if mm.gateDeniedTotal, err = NewCounter(cfg.Meter,
		"metering_gate_denied_total",
		"Total requests denied by the rate gate",
		"{request}"); err != nil {
		return nil, &MetricsError{Op: "NewMeteringMetrics", Err: err.Error()}
	}
	if mm.usageRecordedTotal, err = NewCounter(cfg.Meter,
		"metering_usage_recorded_total",
		"Total usage quantity appended to the ledger",
		"{unit}"); err != nil {
		return nil, &MetricsError{Op: "NewMeteringMetrics", Err: err.Error()}
	}
	if mm.cycleRolloverTotal, err = NewCounter(cfg.Meter,
		"metering_cycle_rollover_total",
		"Total billing cycle rollovers performed",
		"{rollover}"); err != nil {
		return nil, &MetricsError{Op: "NewMeteringMetrics", Err: err.Error()}
	}
	if mm.overageCentsTotal, err = NewCounter(cfg.Meter,
		"metering_overage_cents_total",
		"Total overage amount billed at cycle close, in cents",
		"{cent}"); err != nil {
		return nil, &MetricsError{Op: "NewMeteringMetrics", Err: err.Error()}
	}

	return mm, nil
}

// RecordGateAllowed records an admitted request
func (mm *MeteringMetrics) RecordGateAllowed(ctx context.Context, tenantID uuid.UUID, plan string) {
	mm.gateAllowedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPlan.String(plan),
	)
}

// RecordGateDenied records a denied request with its reason
func (mm *MeteringMetrics) RecordGateDenied(ctx context.Context, tenantID uuid.UUID, plan, reason string) {
	mm.gateDeniedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPlan.String(plan),
		AttrDenyReason.String(reason),
	)
}

// RecordUsage records quantity appended to the ledger
func (mm *MeteringMetrics) RecordUsage(ctx context.Context, tenantID uuid.UUID, kind string, quantity int64) {
	mm.usageRecordedTotal.Add(ctx, quantity,
		AttrTenantID.String(tenantID.String()),
		AttrUsageKind.String(kind),
	)
}

// RecordRollover records one billing cycle close, with the overage it billed
func (mm *MeteringMetrics) RecordRollover(ctx context.Context, tenantID uuid.UUID, plan, cycle string, overageCents int64) {
	mm.cycleRolloverTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPlan.String(plan),
		AttrBillingCycle.String(cycle),
	)
	if overageCents > 0 {
		mm.overageCentsTotal.Add(ctx, overageCents,
			AttrTenantID.String(tenantID.String()),
			AttrPlan.String(plan),
		)
	}
}

// MetricsError describes a metrics initialization failure
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return "telemetry: " + e.Op + ": " + e.Err
}

// ErrMeterNil is returned when a nil meter is passed to a metrics constructor
var ErrMeterNil = &MetricsError{Op: "NewMeteringMetrics", Err: "meter cannot be nil"}
