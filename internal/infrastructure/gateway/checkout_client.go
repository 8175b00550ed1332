// Package gateway talks to the hosted checkout provider used for card and
// crypto payments and verifies the provider's signed callbacks.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	ErrGatewayUnavailable   = errors.New("gateway: unavailable")
	ErrGatewayRequestFailed = errors.New("gateway: request failed")
	ErrInvalidConfig        = errors.New("gateway: invalid configuration")
)

const checkoutPath = "/v1/checkout/sessions"

// Config holds checkout client settings.
type Config struct {
	Endpoint   string
	APIKey     string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
	MaxRetries uint64
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	return nil
}

type checkoutRequest struct {
	Reference   string            `json:"reference"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Method      string            `json:"payment_method"`
	Description string            `json:"description,omitempty"`
	SuccessURL  string            `json:"success_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckoutClient implements the ledger Gateway port over the provider's
// REST API. Requests carry the payment reference as Idempotency-Key, so
// transport failures and 5xx answers are retried with backoff.
type CheckoutClient struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ appledger.Gateway = (*CheckoutClient)(nil)

func NewCheckoutClient(cfg Config, logger *zap.Logger) (*CheckoutClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

// CreateCheckout opens a hosted checkout session for the payment.
func (c *CheckoutClient) CreateCheckout(ctx context.Context, req appledger.CheckoutRequest) (*appledger.CheckoutSession, error) {
	body, err := json.Marshal(checkoutRequest{
		Reference:   req.Reference,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Method:      req.Method.String(),
		Description: req.Description,
		SuccessURL:  c.config.SuccessURL,
		CancelURL:   c.config.CancelURL,
		Metadata:    map[string]string{"user_id": req.UserID},
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to marshal request: %w", err)
	}

	var respBody []byte
	attempt := 0
	op := func() error {
		attempt++
		b, err := c.doRequest(ctx, req.Reference, body)
		if err != nil {
			if errors.Is(err, ErrGatewayRequestFailed) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("Checkout request failed, retrying",
				zap.String("reference", req.Reference),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		respBody = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.config.Timeout
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.config.MaxRetries), ctx)); err != nil {
		return nil, err
	}

	var out checkoutResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse response: %w", err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("%w: response has no checkout url", ErrGatewayRequestFailed)
	}
	return &appledger.CheckoutSession{URL: out.URL, GatewayTxnID: out.ID}, nil
}

func (c *CheckoutClient) doRequest(ctx context.Context, reference string, body []byte) ([]byte, error) {
	url := strings.TrimRight(c.config.Endpoint, "/") + checkoutPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Idempotency-Key", reference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrGatewayRequestFailed, errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, resp.StatusCode)
	}
	return respBody, nil
}
