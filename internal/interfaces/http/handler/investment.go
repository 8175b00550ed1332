package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
)

// InvestmentService is the investment lifecycle as seen by the API
type InvestmentService interface {
	SelectPlan(ctx context.Context, req appledger.SelectPlanRequest) (*appledger.InvestmentResponse, error)
	Cancel(ctx context.Context, userID string, id uuid.UUID) (*appledger.InvestmentResponse, error)
}

// InvestmentHandler lets members commit to a plan
type InvestmentHandler struct {
	BaseHandler
	investments InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler
func NewInvestmentHandler(investments InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{investments: investments}
}

// Select handles POST /investments. The investment stays pending until its
// payment is confirmed.
func (h *InvestmentHandler) Select(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	var req appledger.SelectPlanRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.UserID = userID

	inv, err := h.investments.SelectPlan(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Cancel handles POST /investments/:id/cancel
func (h *InvestmentHandler) Cancel(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.investments.Cancel(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}
