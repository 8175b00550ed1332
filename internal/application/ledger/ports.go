package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ProfileStore is the identity/profile collaborator. The ledger reads
// profile state through it and never manages KYC or payout details itself.
type ProfileStore interface {
	// GetUser returns ledger.ErrUserNotFound when the user is unknown
	GetUser(ctx context.Context, userID string) (*ledger.Member, error)
	IsKycApproved(ctx context.Context, userID string) (bool, error)
	// GetPayoutMethod returns nil when no payout destination is configured
	GetPayoutMethod(ctx context.Context, userID string) (ledger.PayoutMethod, error)
	HasSuccessfulRegistrationPayment(ctx context.Context, userID string) (bool, error)
}

// Notification is sent after a payment is confirmed or a payout is settled
type Notification struct {
	PaymentID     uuid.UUID
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	UserID        string
	Description   string
	PayoutDetails string
}

// Notifier delivers receipts and payout notices. Failures are logged by the
// caller and never affect committed ledger state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// CheckoutRequest asks the payment gateway to start collecting a payment
type CheckoutRequest struct {
	Reference   string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Method      ledger.PaymentMethod
	Description string
}

// CheckoutSession is the gateway's answer to a CheckoutRequest
type CheckoutSession struct {
	URL          string
	GatewayTxnID string
}

// Gateway initiates hosted checkouts for card and crypto payments
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// TickLocker provides mutual exclusion for scheduler ticks across processes
type TickLocker interface {
	// TryLock returns ok=false without error when another holder owns key
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// Metrics records ledger business metrics
type Metrics interface {
	PaymentOpened(typ ledger.PaymentType, method ledger.PaymentMethod)
	PaymentConfirmed(typ ledger.PaymentType, outcome string)
	Settlement(outcome string, amount decimal.Decimal)
	SchedulerTick(duration time.Duration, created, promoted int64, outcome string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

type noopMetrics struct{}

func (noopMetrics) PaymentOpened(ledger.PaymentType, ledger.PaymentMethod) {}
func (noopMetrics) PaymentConfirmed(ledger.PaymentType, string)            {}
func (noopMetrics) Settlement(string, decimal.Decimal)                     {}
func (noopMetrics) SchedulerTick(time.Duration, int64, int64, string)      {}

// Outcome labels used with Metrics
const (
	OutcomeSuccess          = "success"
	OutcomeAlreadyConfirmed = "already_confirmed"
	OutcomeConflict         = "conflict"
	OutcomeRejected         = "rejected"
	OutcomeFailed           = "failed"
	OutcomeError            = "error"
	OutcomeSkipped          = "skipped"
)

// Clock returns the current time; tests substitute a fixed clock
type Clock func() time.Time
