package billing

import (
	"sort"

	"github.com/autoseo/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Plan IDs known to the catalog
const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// OverageBlockSize is the number of requests charged as one overage block
const OverageBlockSize = 100

// ErrPlanNotFound is returned when a plan ID is not in the catalog
var ErrPlanNotFound = shared.NewDomainError("PLAN_NOT_FOUND", "Unknown subscription plan")

// Plan describes a subscription tier. The catalog is static configuration,
// not persisted state; tenants copy the fields they need at assignment time.
// IncludedRequests and RateLimit are the same number by construction: the
// gate cap is also the overage base, requests past it are only possible
// through soft-limit bursts or direct ledger writes and are billed as
// overage.
type Plan struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	MonthlyPriceCents int64    `json:"monthly_price_cents"`
	IncludedRequests  int64    `json:"included_requests"`
	RateLimit         int64    `json:"rate_limit"`
	OverageRateCents  int64    `json:"overage_rate_cents"`
	Features          []string `json:"features"`
}

// MonthlyPrice returns the base price as a decimal dollar amount
func (p *Plan) MonthlyPrice() decimal.Decimal {
	return decimal.NewFromInt(p.MonthlyPriceCents).Div(decimal.NewFromInt(100))
}

var planCatalog = map[string]Plan{
	PlanFree: {
		ID:                PlanFree,
		Name:              "Free",
		MonthlyPriceCents: 0,
		IncludedRequests:  100,
		RateLimit:         100,
		OverageRateCents:  5,
		Features:          []string{"api_access"},
	},
	PlanStarter: {
		ID:                PlanStarter,
		Name:              "Starter",
		MonthlyPriceCents: 2900,
		IncludedRequests:  1000,
		RateLimit:         1000,
		OverageRateCents:  5,
		Features:          []string{"api_access", "email_support"},
	},
	PlanPro: {
		ID:                PlanPro,
		Name:              "Pro",
		MonthlyPriceCents: 9900,
		IncludedRequests:  10000,
		RateLimit:         10000,
		OverageRateCents:  3,
		Features:          []string{"api_access", "email_support", "priority_queue"},
	},
	PlanEnterprise: {
		ID:                PlanEnterprise,
		Name:              "Enterprise",
		MonthlyPriceCents: 49900,
		IncludedRequests:  100000,
		RateLimit:         100000,
		OverageRateCents:  2,
		Features:          []string{"api_access", "email_support", "priority_queue", "sla"},
	},
}

// GetPlan looks up a plan by ID
func GetPlan(id string) (*Plan, error) {
	plan, ok := planCatalog[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

// ListPlans returns the full catalog ordered by price
func ListPlans() []Plan {
	plans := make([]Plan, 0, len(planCatalog))
	for _, p := range planCatalog {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].MonthlyPriceCents < plans[j].MonthlyPriceCents
	})
	return plans
}
