package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeSignatureHeader is the header Stripe signs webhook deliveries with
const StripeSignatureHeader = "Stripe-Signature"

// StripeWebhookParser verifies Stripe webhook deliveries and translates
// checkout session events into ledger gateway callbacks.
type StripeWebhookParser struct {
	secret string
	logger *zap.Logger
}

func NewStripeWebhookParser(config *StripeConfig, logger *zap.Logger) (*StripeWebhookParser, error) {
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeWebhookParser{secret: config.WebhookSecret, logger: logger}, nil
}

// Parse verifies signature against payload and returns the callback the
// event stands for. Events that do not settle a checkout return nil.
func (p *StripeWebhookParser) Parse(payload []byte, signature string) (*appledger.GatewayCallback, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var status string
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		status = "success"
	case stripe.EventTypeCheckoutSessionExpired:
		status = "expired"
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		status = "failed"
	default:
		p.logger.Debug("Unhandled Stripe event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	// a completed session with a delayed payment method settles later
	if event.Type == stripe.EventTypeCheckoutSessionCompleted &&
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		p.logger.Info("Checkout completed with payment still pending",
			zap.String("session_id", sess.ID))
		return nil, nil
	}

	reference := sess.ClientReferenceID
	if reference == "" {
		reference = sess.Metadata["reference"]
	}
	if reference == "" {
		return nil, fmt.Errorf("checkout session %s carries no payment reference", sess.ID)
	}

	cb := &appledger.GatewayCallback{
		Reference:    reference,
		Status:       status,
		Amount:       decimal.New(sess.AmountTotal, -2),
		Currency:     strings.ToUpper(string(sess.Currency)),
		GatewayTxnID: sess.ID,
	}
	if status != "success" {
		cb.Reason = "stripe " + string(event.Type)
	}
	return cb, nil
}
