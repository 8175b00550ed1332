package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

// StripeConfig holds configuration for Stripe hosted checkout
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// WebhookSecret verifies the Stripe-Signature header of webhook events
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	IsTestMode bool `json:"is_test_mode" mapstructure:"is_test_mode"`

	SuccessURL string `json:"success_url" mapstructure:"success_url"`
	CancelURL  string `json:"cancel_url" mapstructure:"cancel_url"`
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: stripe secret key is required", ErrInvalidConfig)
	}
	if c.IsTestMode && !strings.HasPrefix(c.SecretKey, "sk_test") {
		return fmt.Errorf("%w: test mode enabled but stripe secret key is not a test key", ErrInvalidConfig)
	}
	if !c.IsTestMode && !strings.HasPrefix(c.SecretKey, "sk_live") {
		return fmt.Errorf("%w: live mode enabled but stripe secret key is not a live key", ErrInvalidConfig)
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return fmt.Errorf("%w: stripe success and cancel urls are required", ErrInvalidConfig)
	}
	return nil
}

// InitStripeClient sets the global API key used by the stripe packages
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}

// StripeCheckout implements the ledger Gateway port with Stripe Checkout
// sessions in payment mode. The payment reference travels as the session's
// client reference, so webhook events map back to the pending payment.
type StripeCheckout struct {
	config *StripeConfig
	logger *zap.Logger
}

var _ appledger.Gateway = (*StripeCheckout)(nil)

func NewStripeCheckout(config *StripeConfig, logger *zap.Logger) (*StripeCheckout, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.InitStripeClient()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeCheckout{config: config, logger: logger}, nil
}

// CreateCheckout opens a Stripe Checkout session for the payment
func (s *StripeCheckout) CreateCheckout(ctx context.Context, req appledger.CheckoutRequest) (*appledger.CheckoutSession, error) {
	description := req.Description
	if description == "" {
		description = "Payment " + req.Reference
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(s.config.SuccessURL),
		CancelURL:         stripe.String(s.config.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					// minor units
					UnitAmount: stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Method == ledger.PaymentMethodCard {
		params.PaymentMethodTypes = stripe.StringSlice([]string{"card"})
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("reference", req.Reference)
	params.AddMetadata("user_id", req.UserID)

	sess, err := session.New(params)
	if err != nil {
		s.logger.Error("Failed to create Stripe checkout session",
			zap.String("reference", req.Reference),
			zap.Error(err))
		return nil, classifyStripeError(err)
	}

	s.logger.Info("Created Stripe checkout session",
		zap.String("reference", req.Reference),
		zap.String("session_id", sess.ID))

	return &appledger.CheckoutSession{URL: sess.URL, GatewayTxnID: sess.ID}, nil
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: stripe %d: %s", ErrGatewayUnavailable, stripeErr.HTTPStatusCode, stripeErr.Msg)
		}
		return fmt.Errorf("%w: stripe %s: %s", ErrGatewayRequestFailed, stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
