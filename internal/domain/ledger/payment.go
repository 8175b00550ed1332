package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentType distinguishes what a payment pays for
type PaymentType string

const (
	PaymentTypeRegistration PaymentType = "registration"
	PaymentTypeInvestment   PaymentType = "investment"
	PaymentTypeROI          PaymentType = "roi"
)

func (t PaymentType) IsValid() bool {
	switch t {
	case PaymentTypeRegistration, PaymentTypeInvestment, PaymentTypeROI:
		return true
	}
	return false
}

func (t PaymentType) String() string {
	return string(t)
}

// referencePrefix is the leading token of generated references
func (t PaymentType) referencePrefix() string {
	switch t {
	case PaymentTypeRegistration:
		return "REG"
	case PaymentTypeInvestment:
		return "INV"
	default:
		return "ROI"
	}
}

// PaymentMethod is the channel money moves through
type PaymentMethod string

const (
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCrypto PaymentMethod = "crypto"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBank, PaymentMethodCash, PaymentMethodCard, PaymentMethodCrypto:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// UsesGateway reports whether payments through m are confirmed by a gateway callback
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodCard || m == PaymentMethodCrypto
}

// ParsePaymentMethod normalizes method names, accepting legacy aliases
// such as "walletcrypto" and "bank_transfer".
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bank", "bank_transfer", "banktransfer":
		return PaymentMethodBank, nil
	case "cash":
		return PaymentMethodCash, nil
	case "card", "credit_card", "debit_card":
		return PaymentMethodCard, nil
	case "crypto", "walletcrypto", "wallet_crypto":
		return PaymentMethodCrypto, nil
	}
	return "", shared.NewValidationError(ReasonInvalidPaymentMethod, fmt.Sprintf("unsupported payment method %q", s))
}

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the payment has left pending
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// Payment records one money movement. Reference is globally unique and is
// the idempotency key for confirmation. A payment is created pending and
// leaves pending exactly once.
type Payment struct {
	shared.OwnedAggregateRoot

	Reference    string               `json:"reference"`
	InvestmentID *uuid.UUID           `json:"investment_id,omitempty"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     valueobject.Currency `json:"currency"`
	Method       PaymentMethod        `json:"method"`
	Type         PaymentType          `json:"type"`
	Status       PaymentStatus        `json:"status"`
	Description  string               `json:"description,omitempty"`
	CheckoutURL  string               `json:"checkout_url,omitempty"`
	GatewayTxnID string               `json:"gateway_txn_id,omitempty"`
	ConfirmedAt  *time.Time           `json:"confirmed_at,omitempty"`
	FailedAt     *time.Time           `json:"failed_at,omitempty"`
	FailReason   string               `json:"fail_reason,omitempty"`
}

// NewPendingPayment creates a pending payment with a freshly generated reference
func NewPendingPayment(userID string, amount decimal.Decimal, currency valueobject.Currency, method PaymentMethod, typ PaymentType, investmentID *uuid.UUID) (*Payment, error) {
	if userID == "" {
		return nil, shared.NewValidationError(ReasonInvalidMemberReference, "user ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError(ReasonInvalidAmount, "payment amount must be positive")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError(ReasonInvalidPaymentMethod, fmt.Sprintf("unsupported payment method %q", method))
	}
	if !typ.IsValid() {
		return nil, shared.NewValidationError(ReasonInvalidPaymentType, fmt.Sprintf("unsupported payment type %q", typ))
	}
	if typ == PaymentTypeInvestment && investmentID == nil {
		return nil, shared.NewValidationError(ReasonInvalidPaymentType, "investment payments require an investment ID")
	}

	p := &Payment{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(userID),
		InvestmentID:       investmentID,
		Amount:             amount,
		Currency:           currency,
		Method:             method,
		Type:               typ,
		Status:             PaymentStatusPending,
	}
	p.Reference = GenerateReference(typ, userID, p.CreatedAt)
	return p, nil
}

// NewSettlementPayment creates the already-successful roi payment that
// records an outgoing payout.
func NewSettlementPayment(userID string, investmentID uuid.UUID, amount decimal.Decimal, currency valueobject.Currency, method PaymentMethod, description string, now time.Time) (*Payment, error) {
	p, err := NewPendingPayment(userID, amount, currency, method, PaymentTypeROI, &investmentID)
	if err != nil {
		return nil, err
	}
	now = shared.NormalizeTime(now)
	p.Status = PaymentStatusSuccess
	p.ConfirmedAt = &now
	p.Description = description
	return p, nil
}

// GenerateReference builds "<TYPE>-<user>-<unix millis>-<random hex>".
// The random suffix keeps references unique for payments opened in the same millisecond.
func GenerateReference(typ PaymentType, userID string, at time.Time) string {
	user := strings.ToUpper(strings.ReplaceAll(userID, "-", ""))
	if len(user) > 8 {
		user = user[:8]
	}
	return fmt.Sprintf("%s-%s-%d-%s", typ.referencePrefix(), user, at.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// ValidateGatewayAssertion checks the amount and currency a gateway reports
// against the stored payment. A mismatch must not change payment state.
func (p *Payment) ValidateGatewayAssertion(amount decimal.Decimal, currency string) error {
	if !amount.Equal(p.Amount) {
		return shared.NewValidationError(ReasonAmountMismatch,
			fmt.Sprintf("gateway amount %s does not match payment amount %s", amount.StringFixed(2), p.Amount.StringFixed(2)))
	}
	if currency != "" && !strings.EqualFold(currency, string(p.Currency)) {
		return shared.NewValidationError(ReasonCurrencyMismatch,
			fmt.Sprintf("gateway currency %s does not match payment currency %s", currency, p.Currency))
	}
	return nil
}

// MarkConfirmed mirrors a successful pending->success transition into memory
// and raises PaymentConfirmed. Persistence performs the conditional update.
func (p *Payment) MarkConfirmed(now time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewReasonedError(shared.CodeInvalidState, ReasonPaymentNotPending,
			fmt.Sprintf("cannot confirm a payment in %s status", p.Status))
	}
	now = shared.NormalizeTime(now)
	p.Status = PaymentStatusSuccess
	p.ConfirmedAt = &now
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentConfirmedEvent(p))
	return nil
}

// MarkFailed mirrors a pending->failed transition into memory
func (p *Payment) MarkFailed(reason string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return shared.NewReasonedError(shared.CodeInvalidState, ReasonPaymentNotPending,
			fmt.Sprintf("cannot fail a payment in %s status", p.Status))
	}
	now = shared.NormalizeTime(now)
	p.Status = PaymentStatusFailed
	p.FailReason = reason
	p.FailedAt = &now
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentFailedEvent(p))
	return nil
}

// Money returns the payment amount as a Money value
func (p *Payment) Money() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}
