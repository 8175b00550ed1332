package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ReturnStatus represents the status of a scheduled payout
type ReturnStatus string

const (
	ReturnStatusPending ReturnStatus = "pending"
	ReturnStatusDue     ReturnStatus = "due"
	ReturnStatusPaid    ReturnStatus = "paid"
	ReturnStatusFailed  ReturnStatus = "failed"
)

func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusDue, ReturnStatusPaid, ReturnStatusFailed:
		return true
	}
	return false
}

func (s ReturnStatus) String() string {
	return string(s)
}

// Return is one payout period of an investment, unique per
// (InvestmentID, PayoutDate). Amount is copied from the ROI snapshot when
// the return is created.
type Return struct {
	shared.OwnedAggregateRoot

	InvestmentID uuid.UUID            `json:"investment_id"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     valueobject.Currency `json:"currency"`
	PayoutDate   time.Time            `json:"payout_date"`
	Status       ReturnStatus         `json:"status"`
	PaidAt       *time.Time           `json:"paid_at,omitempty"`
	PaymentID    *uuid.UUID           `json:"payment_id,omitempty"`
}

// NewScheduledReturn creates the pending return for payoutDate
func NewScheduledReturn(inv *Investment, roi *ROI, payoutDate time.Time) (*Return, error) {
	if inv == nil || roi == nil {
		return nil, shared.NewValidationError(ReasonInvalidAmount, "investment and ROI are required to schedule a return")
	}
	if roi.InvestmentID != inv.ID {
		return nil, shared.NewValidationError(ReasonReturnMismatch, "ROI does not belong to the investment")
	}
	r := &Return{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(inv.UserID),
		InvestmentID:       inv.ID,
		Amount:             roi.PeriodReturnAmount,
		Currency:           roi.Currency,
		PayoutDate:         shared.NormalizeTime(payoutDate),
		Status:             ReturnStatusPending,
	}
	r.AddDomainEvent(NewReturnScheduledEvent(r))
	return r, nil
}

// IsSettleable reports whether the return may still be paid out
func (r *Return) IsSettleable() bool {
	return r.Status != ReturnStatusPaid
}

// PromoteToDue moves a pending return whose payout date has arrived to due
func (r *Return) PromoteToDue(now time.Time) bool {
	if r.Status != ReturnStatusPending || r.PayoutDate.After(now) {
		return false
	}
	r.Status = ReturnStatusDue
	r.UpdatedAt = shared.NormalizeTime(now)
	return true
}

// MarkPaid mirrors the settlement transition into memory
func (r *Return) MarkPaid(paymentID uuid.UUID, now time.Time) error {
	if r.Status == ReturnStatusPaid {
		return ErrReturnAlreadyPaid
	}
	if !r.Status.IsValid() {
		return shared.NewReasonedError(shared.CodeInvalidState, ReasonInvalidTransition, fmt.Sprintf("unknown return status %q", r.Status))
	}
	now = shared.NormalizeTime(now)
	r.Status = ReturnStatusPaid
	r.PaidAt = &now
	r.PaymentID = &paymentID
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewReturnSettledEvent(r))
	return nil
}
