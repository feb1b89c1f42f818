package scheduler

import (
	"context"
	"testing"
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(cfg BillingSweepSchedulerConfig) *BillingSweepScheduler {
	logger := zap.NewNop()
	cycles := appbilling.NewCycleService(nil, nil, nil, logger, appbilling.DefaultCycleServiceConfig())
	retention := appbilling.NewRetentionService(nil, nil, logger, appbilling.DefaultRetentionConfig())
	return NewBillingSweepScheduler(cycles, retention, logger, cfg)
}

func TestBillingSweepScheduler_Lifecycle(t *testing.T) {
	cfg := DefaultBillingSweepSchedulerConfig()
	// long intervals so no job fires during the test
	cfg.ReconcileInterval = time.Hour
	cfg.RetentionInterval = time.Hour
	s := newTestScheduler(cfg)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	// Start is idempotent
	require.NoError(t, s.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())

	// Stop is idempotent
	require.NoError(t, s.Stop(stopCtx))
}

func TestBillingSweepScheduler_Disabled(t *testing.T) {
	cfg := DefaultBillingSweepSchedulerConfig()
	cfg.Enabled = false
	s := newTestScheduler(cfg)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestBillingSweepScheduler_InvalidConfig(t *testing.T) {
	cfg := DefaultBillingSweepSchedulerConfig()
	cfg.ReconcileInterval = 0
	s := newTestScheduler(cfg)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBillingSweepScheduler_TriggerWhenStopped(t *testing.T) {
	s := newTestScheduler(DefaultBillingSweepSchedulerConfig())

	assert.ErrorIs(t, s.TriggerReconcile(context.Background()), ErrSchedulerNotRunning)
	assert.ErrorIs(t, s.TriggerRetention(context.Background()), ErrSchedulerNotRunning)
}
