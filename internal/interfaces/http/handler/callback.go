package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/infrastructure/gateway"
	"github.com/primebond/ledger/internal/infrastructure/logger"
	"github.com/primebond/ledger/internal/interfaces/http/dto"
	"github.com/primebond/ledger/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// CallbackService applies gateway notifications
type CallbackService interface {
	HandleGatewayCallback(ctx context.Context, cb appledger.GatewayCallback) (*appledger.ConfirmResult, error)
}

// SignatureVerifier checks the gateway signature header against the raw body
type SignatureVerifier interface {
	Verify(payload []byte, header string) error
}

// CallbackHandler receives the payment gateway's asynchronous notifications
type CallbackHandler struct {
	BaseHandler
	payments CallbackService
	verifier SignatureVerifier
	header   string
	maxBody  int64
}

// NewCallbackHandler creates a new CallbackHandler. signatureHeader names
// the header the verifier reads.
func NewCallbackHandler(payments CallbackService, verifier SignatureVerifier, signatureHeader string) *CallbackHandler {
	return &CallbackHandler{
		payments: payments,
		verifier: verifier,
		header:   signatureHeader,
		maxBody:  64 << 10,
	}
}

// Handle handles POST /payments/callback. The signature covers the raw body,
// so it is checked before the payload is decoded.
func (h *CallbackHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody))
	if err != nil {
		h.BadRequest(c, "Unreadable body")
		return
	}

	if err := h.verifier.Verify(body, c.GetHeader(h.header)); err != nil {
		logger.L(c.Request.Context()).Warn("Rejected gateway callback",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		h.Unauthorized(c, dto.ErrCodeBadSignature, "Invalid callback signature")
		return
	}

	var cb appledger.GatewayCallback
	if err := binding.JSON.BindBody(body, &cb); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.payments.HandleGatewayCallback(c.Request.Context(), cb)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// StripeEventParser turns a signed Stripe delivery into a gateway callback.
// A nil callback means the event does not settle a payment.
type StripeEventParser interface {
	Parse(payload []byte, signature string) (*appledger.GatewayCallback, error)
}

// StripeWebhookHandler receives Stripe checkout events
type StripeWebhookHandler struct {
	BaseHandler
	payments CallbackService
	parser   StripeEventParser
	maxBody  int64
}

func NewStripeWebhookHandler(payments CallbackService, parser StripeEventParser) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		payments: payments,
		parser:   parser,
		maxBody:  64 << 10,
	}
}

// Handle handles POST /payments/stripe/webhook
func (h *StripeWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody))
	if err != nil {
		h.BadRequest(c, "Unreadable body")
		return
	}

	cb, err := h.parser.Parse(body, c.GetHeader(gateway.StripeSignatureHeader))
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			logger.L(c.Request.Context()).Warn("Rejected Stripe webhook",
				zap.Error(err),
				zap.String("client_ip", c.ClientIP()))
			h.Unauthorized(c, dto.ErrCodeBadSignature, "Invalid webhook signature")
			return
		}
		h.BadRequest(c, err.Error())
		return
	}
	if cb == nil {
		h.Success(c, gin.H{"received": true})
		return
	}

	result, err := h.payments.HandleGatewayCallback(c.Request.Context(), *cb)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
