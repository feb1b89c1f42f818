package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/autoseo/backend/internal/application/billing"
	"go.uber.org/zap"
)

// BillingSweepScheduler runs the two background jobs the billing engine
// needs: reconciling tenants whose cycle window has elapsed, and pruning
// usage events past the retention horizon. Rollover happens lazily on the
// request path as well; the sweep exists so dormant tenants do not stay
// stale forever.
type BillingSweepScheduler struct {
	cycles    *billing.CycleService
	retention *billing.RetentionService
	logger    *zap.Logger
	config    BillingSweepSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// BillingSweepSchedulerConfig holds configuration for the billing sweep scheduler
type BillingSweepSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// ReconcileInterval is how often elapsed cycle windows are swept
	ReconcileInterval time.Duration

	// RetentionInterval is how often old usage events are pruned
	RetentionInterval time.Duration

	// SweepBatchSize bounds how many tenants one reconcile pass loads at a time
	SweepBatchSize int

	// JobTimeout is the maximum time for a single sweep run
	JobTimeout time.Duration
}

// DefaultBillingSweepSchedulerConfig returns default configuration
func DefaultBillingSweepSchedulerConfig() BillingSweepSchedulerConfig {
	return BillingSweepSchedulerConfig{
		Enabled:           true,
		ReconcileInterval: 5 * time.Minute,
		RetentionInterval: 24 * time.Hour,
		SweepBatchSize:    200,
		JobTimeout:        10 * time.Minute,
	}
}

// NewBillingSweepScheduler creates a new billing sweep scheduler
func NewBillingSweepScheduler(
	cycles *billing.CycleService,
	retention *billing.RetentionService,
	logger *zap.Logger,
	config BillingSweepSchedulerConfig,
) *BillingSweepScheduler {
	return &BillingSweepScheduler{
		cycles:    cycles,
		retention: retention,
		logger:    logger,
		config:    config,
	}
}

// Start starts the sweep loops
func (s *BillingSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Billing sweep scheduler is disabled")
		return nil
	}
	if s.config.ReconcileInterval <= 0 || s.config.RetentionInterval <= 0 {
		s.mu.Unlock()
		return ErrInvalidConfig
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx, "cycle reconcile", s.config.ReconcileInterval, s.executeReconcile)

	s.wg.Add(1)
	go s.runLoop(ctx, "ledger retention", s.config.RetentionInterval, s.executeRetention)

	s.logger.Info("Billing sweep scheduler started",
		zap.Duration("reconcile_interval", s.config.ReconcileInterval),
		zap.Duration("retention_interval", s.config.RetentionInterval),
		zap.Int("sweep_batch_size", s.config.SweepBatchSize),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *BillingSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Billing sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Billing sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *BillingSweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerReconcile runs one reconcile sweep immediately
func (s *BillingSweepScheduler) TriggerReconcile(ctx context.Context) error {
	return s.trigger(ctx, s.executeReconcile)
}

// TriggerRetention runs one retention sweep immediately
func (s *BillingSweepScheduler) TriggerRetention(ctx context.Context) error {
	return s.trigger(ctx, s.executeRetention)
}

func (s *BillingSweepScheduler) trigger(ctx context.Context, job func(context.Context)) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		job(ctx)
	}()
	return nil
}

func (s *BillingSweepScheduler) runLoop(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sweep loop stopping", zap.String("job", name))
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (s *BillingSweepScheduler) executeReconcile(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	startTime := time.Now()
	swept, err := s.cycles.SweepElapsed(jobCtx, startTime.UTC(), s.config.SweepBatchSize)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Cycle reconcile sweep failed",
			zap.Duration("duration", duration),
			zap.Int("swept", swept),
			zap.Error(err),
		)
		return
	}

	if swept > 0 {
		s.logger.Info("Cycle reconcile sweep completed",
			zap.Duration("duration", duration),
			zap.Int("swept", swept),
		)
	}
}

func (s *BillingSweepScheduler) executeRetention(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.retention.PruneOldEvents(jobCtx, startTime.UTC())
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Ledger retention sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Ledger retention sweep completed",
		zap.Duration("duration", duration),
		zap.Int("tenants_swept", result.TenantsSwept),
		zap.Int64("events_deleted", result.EventsDeleted),
		zap.Int("failed", result.Failed),
	)
}
