package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appledger "github.com/primebond/ledger/internal/application/ledger"
)

// SettlementService releases due returns
type SettlementService interface {
	Withdraw(ctx context.Context, req appledger.WithdrawRequest) (*appledger.WithdrawResult, error)
}

// PayoutService schedules returns
type PayoutService interface {
	RunTick(ctx context.Context) (*appledger.TickResult, error)
	SetPayout(ctx context.Context, req appledger.SetPayoutRequest) (*appledger.SetPayoutResult, error)
}

// SettlementHandler serves the operator payout endpoints
type SettlementHandler struct {
	BaseHandler
	settlement SettlementService
	payouts    PayoutService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlement SettlementService, payouts PayoutService) *SettlementHandler {
	return &SettlementHandler{settlement: settlement, payouts: payouts}
}

// Withdraw handles POST /admin/withdrawals. A second withdraw of the same
// return answers 409 with reason RETURN_ALREADY_PAID.
func (h *SettlementHandler) Withdraw(c *gin.Context) {
	var req appledger.WithdrawRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.settlement.Withdraw(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SetPayout handles POST /admin/returns/schedule
func (h *SettlementHandler) SetPayout(c *gin.Context) {
	var req appledger.SetPayoutRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.payouts.SetPayout(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Created {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}

// RunTick handles POST /admin/scheduler/tick. A tick skipped because another
// process holds the lock still answers 200 with skipped set.
func (h *SettlementHandler) RunTick(c *gin.Context) {
	result, err := h.payouts.RunTick(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
