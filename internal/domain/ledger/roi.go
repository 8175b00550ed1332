package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ROI is the per-investment snapshot of the agreed rate together with the
// running payout totals. Rate and PeriodReturnAmount are fixed at creation
// and never recomputed from the plan.
type ROI struct {
	shared.OwnedAggregateRoot

	InvestmentID       uuid.UUID            `json:"investment_id"`
	Rate               decimal.Decimal      `json:"rate"`
	PeriodReturnAmount decimal.Decimal      `json:"period_return_amount"`
	Currency           valueobject.Currency `json:"currency"`
	Cadence            Cadence              `json:"cadence"`
	TotalPayouts       int                  `json:"total_payouts"`
	TotalPaid          decimal.Decimal      `json:"total_paid"`
	PayoutsMade        int                  `json:"payouts_made"`
	LastPayoutDate     *time.Time           `json:"last_payout_date,omitempty"`
}

// NewROI creates the ROI record for an investment from its activation snapshot
func NewROI(inv *Investment, snap RateSnapshot, currency valueobject.Currency) *ROI {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &ROI{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(inv.UserID),
		InvestmentID:       inv.ID,
		Rate:               snap.Rate,
		PeriodReturnAmount: snap.PeriodReturnAmount,
		Currency:           currency,
		Cadence:            inv.Cadence,
		TotalPayouts:       inv.TotalPayouts,
		TotalPaid:          decimal.Zero,
	}
}

// RecordPayout adds one settled payout to the running totals
func (r *ROI) RecordPayout(amount decimal.Decimal, now time.Time) {
	now = shared.NormalizeTime(now)
	r.TotalPaid = r.TotalPaid.Add(amount)
	r.PayoutsMade++
	r.LastPayoutDate = &now
	r.UpdatedAt = now
	r.IncrementVersion()
}

// RemainingPayouts returns how many payouts are still owed
func (r *ROI) RemainingPayouts() int {
	if r.PayoutsMade >= r.TotalPayouts {
		return 0
	}
	return r.TotalPayouts - r.PayoutsMade
}
