package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/autoseo/backend/internal/application/billing"
	identityapp "github.com/autoseo/backend/internal/application/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/autoseo/backend/internal/infrastructure/auth"
	"github.com/autoseo/backend/internal/infrastructure/cache"
	"github.com/autoseo/backend/internal/infrastructure/config"
	"github.com/autoseo/backend/internal/infrastructure/logger"
	"github.com/autoseo/backend/internal/infrastructure/persistence"
	"github.com/autoseo/backend/internal/infrastructure/scheduler"
	"github.com/autoseo/backend/internal/infrastructure/telemetry"
	"github.com/autoseo/backend/internal/interfaces/http/handler"
	"github.com/autoseo/backend/internal/interfaces/http/middleware"
	"github.com/autoseo/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting AutoSEO Metering API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry providers; no-ops when disabled
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Database with the zap-backed gorm logger
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracingCfg := telemetry.DefaultDBTracingConfig()
		dbTracingCfg.Enabled = true
		dbTracing := telemetry.NewDBTracingPlugin(dbTracingCfg, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	usageEventRepo := persistence.NewGormUsageEventRepository(db.DB)
	billingPeriodRepo := persistence.NewGormBillingPeriodRepository(db.DB)

	// API key cache, optional; resolution degrades to direct store lookups
	// when Redis is not available
	var keyCache auth.KeyCache
	if cfg.Auth.KeyCacheEnable {
		redisCache, err := cache.NewRedisAPIKeyCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Auth.KeyCacheTTL)
		if err != nil {
			log.Warn("API key cache unavailable, continuing without it", zap.Error(err))
		} else {
			keyCache = redisCache
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Error("Error closing API key cache", zap.Error(err))
				}
			}()
			log.Info("API key cache enabled", zap.Duration("ttl", cfg.Auth.KeyCacheTTL))
		}
	}
	keyResolver := auth.NewAPIKeyResolver(tenantRepo, keyCache, log)
	adminVerifier := auth.NewAdminTokenVerifier(cfg.Auth.AdminToken)

	// Idempotency store for retried meter requests, Redis when reachable
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Application services
	cycleService := billingapp.NewCycleService(tenantRepo, usageEventRepo, billingPeriodRepo, log,
		billingapp.CycleServiceConfig{MaxCatchUpCycles: cfg.Billing.MaxCatchUpCycles})
	ledgerService := billingapp.NewLedgerService(tenantRepo, usageEventRepo, cycleService, log)
	rateGateService := billingapp.NewRateGateService(tenantRepo, cycleService, log,
		billingapp.RateGateConfig{StrictReserve: cfg.Billing.StrictReserve})
	reportingService := billingapp.NewReportingService(tenantRepo, usageEventRepo, billingPeriodRepo, cycleService, log)
	invoicingService := billingapp.NewInvoicingService(billingPeriodRepo, log)
	retentionService := billingapp.NewRetentionService(tenantRepo, usageEventRepo, log,
		billingapp.RetentionConfig{RetentionDays: cfg.Billing.RetentionDays})

	tenantService := identityapp.NewTenantService(tenantRepo, log)
	if keyCache != nil {
		// rotation and deletion must drop the cached hash or the old key
		// keeps resolving until the TTL expires
		tenantService = tenantService.WithKeyInvalidator(func(ctx context.Context, keyHash string) {
			keyResolver.Invalidate(ctx, keyHash)
		})
	}

	// Metering metrics, nil when telemetry is off
	var meteringMetrics *telemetry.MeteringMetrics
	if cfg.Telemetry.Enabled {
		meteringMetrics, err = telemetry.NewMeteringMetrics(telemetry.MeteringMetricsConfig{
			Meter:  meterProvider.Meter("metering"),
			Logger: log,
		})
		if err != nil {
			log.Warn("Failed to initialize metering metrics", zap.Error(err))
		}
	}

	// Background sweeps
	sweepScheduler := scheduler.NewBillingSweepScheduler(cycleService, retentionService, log,
		scheduler.BillingSweepSchedulerConfig{
			Enabled:           cfg.Scheduler.Enabled,
			ReconcileInterval: cfg.Scheduler.ReconcileInterval,
			RetentionInterval: cfg.Scheduler.RetentionInterval,
			SweepBatchSize:    cfg.Scheduler.SweepBatchSize,
			JobTimeout:        cfg.Scheduler.JobTimeout,
		})
	if err := sweepScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start billing sweep scheduler", zap.Error(err))
	}
	defer func() {
		if err := sweepScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping billing sweep scheduler", zap.Error(err))
		}
	}()

	// HTTP handlers
	meterHandler := handler.NewMeterHandler(rateGateService, ledgerService, meteringMetrics, log).
		WithIdempotencyStore(idempotencyStore, shared.DefaultIdempotencyConfig().TTL)
	handlers := router.Handlers{
		System:   handler.NewSystemHandler(db.DB),
		Plans:    handler.NewPlanHandler(),
		Tenants:  handler.NewTenantHandler(tenantService, cycleService, log),
		Meter:    meterHandler,
		Usage:    handler.NewUsageHandler(ledgerService, reportingService),
		Billing:  handler.NewBillingHandler(reportingService, invoicingService),
		AdminOps: handler.NewAdminOpsHandler(cycleService, retentionService, log),
	}
	authenticators := router.Authenticators{
		APIKeys:    keyResolver,
		AdminToken: adminVerifier,
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("http"), true))
	}

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	router.SetupRoutes(engine, handlers, authenticators)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
