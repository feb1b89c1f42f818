package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/autoseo/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanRouter() *gin.Engine {
	h := NewPlanHandler()
	router := gin.New()
	router.GET("/plans", h.List)
	router.GET("/plans/:id", h.Get)
	return router
}

func TestPlanHandler_List(t *testing.T) {
	router := newPlanRouter()

	w := doJSON(router, http.MethodGet, "/plans", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []billing.Plan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, len(billing.ListPlans()))

	// catalog order is by price, free first
	assert.Equal(t, billing.PlanFree, resp.Data[0].ID)
	for i := 1; i < len(resp.Data); i++ {
		assert.GreaterOrEqual(t, resp.Data[i].MonthlyPriceCents, resp.Data[i-1].MonthlyPriceCents)
	}
}

func TestPlanHandler_Get(t *testing.T) {
	router := newPlanRouter()

	w := doJSON(router, http.MethodGet, "/plans/starter", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data billing.Plan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, billing.PlanStarter, resp.Data.ID)
	assert.Equal(t, int64(1000), resp.Data.IncludedRequests)
	assert.Equal(t, int64(2000), resp.Data.RateLimit)
}

func TestPlanHandler_Get_Unknown(t *testing.T) {
	router := newPlanRouter()

	w := doJSON(router, http.MethodGet, "/plans/platinum", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ERR_PLAN_NOT_FOUND", resp.Error.Code)
}
