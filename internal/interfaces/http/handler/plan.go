package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
)

// PlanService is the plan catalog as seen by the API
type PlanService interface {
	ListActivePlans(ctx context.Context) ([]appledger.PlanResponse, error)
	GetActivePlan(ctx context.Context, id uuid.UUID) (*appledger.PlanResponse, error)
	CreatePlan(ctx context.Context, req appledger.CreatePlanRequest) (*appledger.PlanResponse, error)
}

// PlanHandler serves the investment plan catalog
type PlanHandler struct {
	BaseHandler
	plans PlanService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(plans PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List handles GET /plans
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.plans.ListActivePlans(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plans)
}

// Get handles GET /plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	plan, err := h.plans.GetActivePlan(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Create handles POST /admin/plans
func (h *PlanHandler) Create(c *gin.Context) {
	var req appledger.CreatePlanRequest
	if !h.BindJSON(c, &req) {
		return
	}
	plan, err := h.plans.CreatePlan(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, plan)
}
