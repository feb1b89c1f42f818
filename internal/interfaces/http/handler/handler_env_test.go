package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	appbilling "github.com/autoseo/backend/internal/application/billing"
	appidentity "github.com/autoseo/backend/internal/application/identity"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/infrastructure/persistence"
	"github.com/autoseo/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLite-compatible mirrors of the persistence models, for in-memory tests

type tenantRowSQLite struct {
	ID                 string    `gorm:"primaryKey"`
	Name               string    `gorm:"not null"`
	Email              string    `gorm:"not null;uniqueIndex"`
	Plan               string    `gorm:"not null"`
	BillingCycle       string    `gorm:"not null;default:'monthly'"`
	SubscriptionStatus string    `gorm:"not null;default:'active'"`
	CycleStart         time.Time `gorm:"not null"`
	CycleEnd           time.Time `gorm:"not null;index"`
	UsageCount         int64     `gorm:"not null;default:0"`
	RateLimit          int64     `gorm:"not null"`
	APIKeyHash         string    `gorm:"not null;uniqueIndex"`
	Version            int       `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (tenantRowSQLite) TableName() string { return "tenants" }

type usageEventRowSQLite struct {
	ID         string    `gorm:"primaryKey"`
	TenantID   string    `gorm:"not null;index"`
	Kind       string    `gorm:"not null"`
	Quantity   int64     `gorm:"not null"`
	PeriodKey  string    `gorm:"not null;index"`
	RecordedAt time.Time `gorm:"not null;index"`
	Metadata   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (usageEventRowSQLite) TableName() string { return "usage_events" }

type billingPeriodRowSQLite struct {
	ID                 string    `gorm:"primaryKey"`
	TenantID           string    `gorm:"not null;uniqueIndex:idx_bp_tenant_start,priority:1"`
	PeriodStart        time.Time `gorm:"not null;uniqueIndex:idx_bp_tenant_start,priority:2"`
	PeriodEnd          time.Time `gorm:"not null"`
	PlanID             string    `gorm:"not null"`
	IncludedRequests   int64     `gorm:"not null"`
	UsageCount         int64     `gorm:"not null"`
	OverageBlocks      int64     `gorm:"not null"`
	OverageAmountCents int64     `gorm:"not null"`
	TotalAmountCents   int64     `gorm:"not null"`
	Status             string    `gorm:"not null;default:'closed'"`
	ClosedAt           time.Time `gorm:"not null"`
	PaidAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (billingPeriodRowSQLite) TableName() string { return "billing_periods" }

// handlerEnv wires the real services over an in-memory store so handler
// tests exercise the full stack below the router
type handlerEnv struct {
	db        *gorm.DB
	tenants   *persistence.GormTenantRepository
	events    *persistence.GormUsageEventRepository
	periods   *persistence.GormBillingPeriodRepository
	cycles    *appbilling.CycleService
	ledger    *appbilling.LedgerService
	gate      *appbilling.RateGateService
	reporting *appbilling.ReportingService
	invoicing *appbilling.InvoicingService
	retention *appbilling.RetentionService
	tenantSvc *appidentity.TenantService
	now       time.Time
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&tenantRowSQLite{},
		&usageEventRowSQLite{},
		&billingPeriodRowSQLite{},
	))

	logger := zap.NewNop()
	tenants := persistence.NewGormTenantRepository(db)
	events := persistence.NewGormUsageEventRepository(db)
	periods := persistence.NewGormBillingPeriodRepository(db)

	env := &handlerEnv{
		db:      db,
		tenants: tenants,
		events:  events,
		periods: periods,
		now:     time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC),
	}
	env.cycles = appbilling.NewCycleService(tenants, events, periods, logger, appbilling.DefaultCycleServiceConfig())
	env.ledger = appbilling.NewLedgerService(tenants, events, env.cycles, logger)
	env.gate = appbilling.NewRateGateService(tenants, env.cycles, logger, appbilling.DefaultRateGateConfig())
	env.reporting = appbilling.NewReportingService(tenants, events, periods, env.cycles, logger)
	env.invoicing = appbilling.NewInvoicingService(periods, logger)
	env.retention = appbilling.NewRetentionService(tenants, events, logger, appbilling.DefaultRetentionConfig())
	env.tenantSvc = appidentity.NewTenantService(tenants, logger).
		WithClock(env.clock())
	return env
}

func (e *handlerEnv) clock() func() time.Time {
	return func() time.Time { return e.now }
}

// registerTenant creates a tenant through the service and loads the full
// entity back, returning it with the raw API key
func (e *handlerEnv) registerTenant(t *testing.T, plan, email string) (*identity.Tenant, string) {
	t.Helper()
	reg, err := e.tenantSvc.Register(context.Background(), appidentity.RegisterTenantInput{
		Name:  "Acme",
		Email: email,
		Plan:  plan,
	})
	require.NoError(t, err)
	tenant, err := e.tenants.FindByID(context.Background(), reg.ID)
	require.NoError(t, err)
	return tenant, reg.APIKey
}

// asTenant returns a middleware that authenticates every request as the
// given tenant, standing in for the API key middleware
func asTenant(tenant *identity.Tenant) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AuthTenantKey, tenant)
		c.Set(middleware.AuthTenantIDKey, tenant.ID.String())
		c.Next()
	}
}

func uniqueEmail(i int) string {
	return fmt.Sprintf("tenant%d@acme.test", i)
}
