package handler

import (
	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
)

// PlanHandler exposes the plan catalog. The catalog is compiled in, so
// these endpoints never touch the store.
type PlanHandler struct {
	BaseHandler
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// List returns every plan in the catalog ordered by price
func (h *PlanHandler) List(c *gin.Context) {
	h.Success(c, billing.ListPlans())
}

// Get returns one plan by its ID
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := billing.GetPlan(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}
