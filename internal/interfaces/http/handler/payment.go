package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appledger "github.com/primebond/ledger/internal/application/ledger"
)

// PaymentService is the payment ledger as seen by the API
type PaymentService interface {
	OpenPending(ctx context.Context, req appledger.OpenPaymentRequest) (*appledger.PaymentResponse, error)
	ConfirmPayment(ctx context.Context, req appledger.ConfirmPaymentRequest) (*appledger.ConfirmResult, error)
}

// PaymentHandler opens and confirms payments
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Open handles POST /payments. Card and crypto payments come back with a
// checkout_url; bank and cash payments wait for an operator.
func (h *PaymentHandler) Open(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	var req appledger.OpenPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.UserID = userID

	payment, err := h.payments.OpenPending(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Confirm handles POST /admin/payments/confirm. Confirming an already
// confirmed payment answers 200 with already_confirmed set.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req appledger.ConfirmPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.payments.ConfirmPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
