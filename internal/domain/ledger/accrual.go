package ledger

import (
	"time"

	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RateSnapshot is the rate and per-period amount fixed at activation
type RateSnapshot struct {
	Rate               decimal.Decimal `json:"rate"`
	PeriodReturnAmount decimal.Decimal `json:"period_return_amount"`
}

// AccrualEngine computes payout amounts and dates. It is stateless.
type AccrualEngine struct{}

// NewAccrualEngine creates an accrual engine
func NewAccrualEngine() *AccrualEngine {
	return &AccrualEngine{}
}

// Snapshot returns rate = monthlyRate (monthly) or annualRate (annually) and
// periodReturnAmount = amount * rate / 100.
func (AccrualEngine) Snapshot(amount decimal.Decimal, plan *InvestmentPlan, cadence Cadence) (RateSnapshot, error) {
	if plan == nil {
		return RateSnapshot{}, ErrPlanNotFound
	}
	if !cadence.IsValid() {
		return RateSnapshot{}, shared.NewValidationError(ReasonInvalidCadence, "cadence must be monthly or annually")
	}
	if !amount.IsPositive() {
		return RateSnapshot{}, shared.NewValidationError(ReasonInvalidAmount, "amount must be positive")
	}
	rate := plan.RateFor(cadence)
	return RateSnapshot{
		Rate:               rate,
		PeriodReturnAmount: amount.Mul(rate).Div(hundred).Round(4),
	}, nil
}

// NextDate returns from + 1 month (monthly) or + 1 year (annually)
func (AccrualEngine) NextDate(cadence Cadence, from time.Time) time.Time {
	return shared.NormalizeTime(cadence.Advance(from))
}
