package identity

import (
	"context"
	"errors"
	"time"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/autoseo/backend/internal/domain/identity"
	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantService handles tenant registration and administration
type TenantService struct {
	tenantRepo identity.TenantRepository
	logger     *zap.Logger
	now        func() time.Time

	// invalidateKey drops a cached API key lookup after rotation or
	// deletion so revoked keys stop resolving immediately
	invalidateKey func(ctx context.Context, keyHash string)
}

// NewTenantService creates a new tenant service
func NewTenantService(
	tenantRepo identity.TenantRepository,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, test use only
func (s *TenantService) WithClock(now func() time.Time) *TenantService {
	s.now = now
	return s
}

// WithKeyInvalidator wires the API key cache invalidation hook
func (s *TenantService) WithKeyInvalidator(fn func(ctx context.Context, keyHash string)) *TenantService {
	s.invalidateKey = fn
	return s
}

// RegisterTenantInput contains input for registering a tenant
type RegisterTenantInput struct {
	Name         string
	Email        string
	Plan         string
	BillingCycle string // defaults to monthly
}

// TenantDTO represents tenant data returned to callers
type TenantDTO struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Plan               string    `json:"plan"`
	BillingCycle       string    `json:"billing_cycle"`
	SubscriptionStatus string    `json:"subscription_status"`
	CycleStart         time.Time `json:"cycle_start"`
	CycleEnd           time.Time `json:"cycle_end"`
	UsageCount         int64     `json:"usage_count"`
	RateLimit          int64     `json:"rate_limit"`
	CreatedAt          time.Time `json:"created_at"`
}

// RegisteredTenantDTO carries the raw API key, returned exactly once
type RegisteredTenantDTO struct {
	TenantDTO
	APIKey string `json:"api_key"`
}

// ToTenantDTO converts a tenant entity to its DTO
func ToTenantDTO(t *identity.Tenant) TenantDTO {
	return TenantDTO{
		ID:                 t.ID,
		Name:               t.Name,
		Email:              t.Email,
		Plan:               t.Plan,
		BillingCycle:       string(t.BillingCycle),
		SubscriptionStatus: string(t.SubscriptionStatus),
		CycleStart:         t.CycleStart,
		CycleEnd:           t.CycleEnd,
		UsageCount:         t.UsageCount,
		RateLimit:          t.RateLimit,
		CreatedAt:          t.CreatedAt,
	}
}

// Register creates a tenant on the requested plan and issues its API key.
// The raw key appears only in the returned DTO; the store keeps the hash.
func (s *TenantService) Register(ctx context.Context, input RegisterTenantInput) (*RegisteredTenantDTO, error) {
	plan, err := billing.GetPlan(input.Plan)
	if err != nil {
		return nil, err
	}

	cycle := billing.BillingCycle(input.BillingCycle)
	if input.BillingCycle == "" {
		cycle = billing.BillingCycleMonthly
	}

	exists, err := s.tenantRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, identity.ErrDuplicateEmail
	}

	rawKey, keyHash, err := identity.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	tenant, err := identity.NewTenant(input.Name, input.Email, plan, cycle, keyHash, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, identity.ErrDuplicateEmail
		}
		return nil, err
	}

	s.logger.Info("Tenant registered",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan", tenant.Plan),
		zap.String("billing_cycle", string(tenant.BillingCycle)))

	return &RegisteredTenantDTO{TenantDTO: ToTenantDTO(tenant), APIKey: rawKey}, nil
}

// GetTenant returns a tenant by ID
func (s *TenantService) GetTenant(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// ListTenants returns tenants matching the filter
func (s *TenantService) ListTenants(ctx context.Context, filter shared.Filter) (*shared.Paginated[TenantDTO], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	tenants, err := s.tenantRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.tenantRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	dtos := make([]TenantDTO, 0, len(tenants))
	for i := range tenants {
		dtos = append(dtos, ToTenantDTO(&tenants[i]))
	}

	page := shared.NewPaginated(dtos, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ChangePlan moves a tenant to a new plan, re-copying its rate limit.
// The open billing window and accrued usage are untouched.
func (s *TenantService) ChangePlan(ctx context.Context, id uuid.UUID, planID string) (*TenantDTO, error) {
	plan, err := billing.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := tenant.ChangePlan(plan); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant plan changed",
		zap.String("tenant_id", id.String()),
		zap.String("plan", planID))

	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// ChangeStatus transitions a tenant's subscription status
func (s *TenantService) ChangeStatus(ctx context.Context, id uuid.UUID, status identity.SubscriptionStatus) (*TenantDTO, error) {
	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := tenant.ChangeStatus(status); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("Tenant subscription status changed",
		zap.String("tenant_id", id.String()),
		zap.String("status", string(status)))

	dto := ToTenantDTO(tenant)
	return &dto, nil
}

// RotateAPIKey issues a fresh API key, invalidating the old one
func (s *TenantService) RotateAPIKey(ctx context.Context, id uuid.UUID) (*RegisteredTenantDTO, error) {
	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	oldHash := tenant.APIKeyHash
	rawKey, keyHash, err := identity.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	if err := tenant.RotateAPIKey(keyHash); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return nil, err
	}
	if s.invalidateKey != nil {
		s.invalidateKey(ctx, oldHash)
	}

	s.logger.Info("Tenant API key rotated", zap.String("tenant_id", id.String()))

	return &RegisteredTenantDTO{TenantDTO: ToTenantDTO(tenant), APIKey: rawKey}, nil
}

// DeleteTenant removes a tenant and, through the schema's cascades, its
// ledger and billing history
func (s *TenantService) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tenant, err := s.findTenant(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tenantRepo.Delete(ctx, id); err != nil {
		return err
	}
	if s.invalidateKey != nil {
		s.invalidateKey(ctx, tenant.APIKeyHash)
	}

	s.logger.Info("Tenant deleted", zap.String("tenant_id", id.String()))
	return nil
}

func (s *TenantService) findTenant(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}
