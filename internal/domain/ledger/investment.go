package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvestmentStatus represents the lifecycle state of an investment
type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// IsValid checks if the status is a valid InvestmentStatus
func (s InvestmentStatus) IsValid() bool {
	switch s {
	case InvestmentStatusPending, InvestmentStatusActive,
		InvestmentStatusCompleted, InvestmentStatusCancelled:
		return true
	}
	return false
}

func (s InvestmentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s InvestmentStatus) IsTerminal() bool {
	return s == InvestmentStatusCompleted || s == InvestmentStatusCancelled
}

// Investment is a member's capital commitment to a plan.
//
// State machine:
//
//	pending --Activate--> active --AdvanceAfterSettlement (repeatable)--> active
//	active --(payoutsMade == totalPayouts)--> completed
//	pending --Cancel--> cancelled
type Investment struct {
	shared.OwnedAggregateRoot

	PlanID         uuid.UUID        `json:"plan_id"`
	PlanName       string           `json:"plan_name"`
	Amount         decimal.Decimal  `json:"amount"`
	Cadence        Cadence          `json:"cadence"`
	TotalPayouts   int              `json:"total_payouts"`
	PayoutsMade    int              `json:"payouts_made"`
	Status         InvestmentStatus `json:"status"`
	NextPayoutDate *time.Time       `json:"next_payout_date,omitempty"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CancelledAt    *time.Time       `json:"cancelled_at,omitempty"`
}

// NewPendingInvestment creates a pending investment after checking the plan bounds
func NewPendingInvestment(userID string, plan *InvestmentPlan, amount decimal.Decimal, cadence Cadence) (*Investment, error) {
	if userID == "" {
		return nil, shared.NewValidationError(ReasonInvalidMemberReference, "user ID cannot be empty")
	}
	inv := &Investment{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(userID),
		Status:             InvestmentStatusPending,
	}
	if err := inv.applyTerms(plan, amount, cadence); err != nil {
		return nil, err
	}
	inv.AddDomainEvent(NewInvestmentSelectedEvent(inv))
	return inv, nil
}

// Reselect updates a pending investment in place with a new plan choice
func (i *Investment) Reselect(plan *InvestmentPlan, amount decimal.Decimal, cadence Cadence) error {
	if i.Status != InvestmentStatusPending {
		return i.transitionError("reselect")
	}
	if err := i.applyTerms(plan, amount, cadence); err != nil {
		return err
	}
	i.Touch()
	i.IncrementVersion()
	i.AddDomainEvent(NewInvestmentSelectedEvent(i))
	return nil
}

func (i *Investment) applyTerms(plan *InvestmentPlan, amount decimal.Decimal, cadence Cadence) error {
	if plan == nil {
		return ErrPlanNotFound
	}
	if !cadence.IsValid() {
		return shared.NewValidationError(ReasonInvalidCadence, "cadence must be monthly or annually")
	}
	if err := plan.ValidateAmount(amount); err != nil {
		return err
	}
	i.PlanID = plan.ID
	i.PlanName = plan.Name
	i.Amount = amount
	i.Cadence = cadence
	i.TotalPayouts = plan.TotalPayouts(cadence)
	return nil
}

// Activate moves a pending investment to active and schedules the first payout
func (i *Investment) Activate(now time.Time) error {
	if i.Status != InvestmentStatusPending {
		return i.transitionError("activate")
	}
	now = shared.NormalizeTime(now)
	next := NewAccrualEngine().NextDate(i.Cadence, now)
	i.Status = InvestmentStatusActive
	i.StartDate = &now
	i.NextPayoutDate = &next
	i.UpdatedAt = now
	i.IncrementVersion()
	i.AddDomainEvent(NewInvestmentActivatedEvent(i))
	return nil
}

// AdvanceAfterSettlement records one settled payout. The investment completes
// when payoutsMade reaches totalPayouts; otherwise the next payout date is
// recomputed from now.
func (i *Investment) AdvanceAfterSettlement(now time.Time) error {
	if i.Status != InvestmentStatusActive {
		return shared.NewReasonedError(shared.CodeInvalidState, ReasonInvestmentNotActive,
			fmt.Sprintf("cannot settle a payout for an investment in %s status", i.Status))
	}
	if i.PayoutsMade >= i.TotalPayouts {
		return shared.NewReasonedError(shared.CodeInvalidState, ReasonPayoutCountExceeded, "all payouts have already been made")
	}
	now = shared.NormalizeTime(now)
	i.PayoutsMade++
	i.UpdatedAt = now
	i.IncrementVersion()
	if i.PayoutsMade >= i.TotalPayouts {
		i.Status = InvestmentStatusCompleted
		i.CompletedAt = &now
		i.NextPayoutDate = nil
		i.AddDomainEvent(NewInvestmentCompletedEvent(i))
		return nil
	}
	next := NewAccrualEngine().NextDate(i.Cadence, now)
	i.NextPayoutDate = &next
	return nil
}

// Cancel abandons a pending investment
func (i *Investment) Cancel(now time.Time) error {
	if i.Status != InvestmentStatusPending {
		return i.transitionError("cancel")
	}
	now = shared.NormalizeTime(now)
	i.Status = InvestmentStatusCancelled
	i.CancelledAt = &now
	i.UpdatedAt = now
	i.IncrementVersion()
	return nil
}

// IsDueForPayout reports whether an active investment's next payout date has arrived
func (i *Investment) IsDueForPayout(now time.Time) bool {
	return i.Status == InvestmentStatusActive && i.NextPayoutDate != nil && !i.NextPayoutDate.After(now)
}

// RemainingPayouts returns totalPayouts - payoutsMade
func (i *Investment) RemainingPayouts() int {
	if i.PayoutsMade >= i.TotalPayouts {
		return 0
	}
	return i.TotalPayouts - i.PayoutsMade
}

// CheckInvariants verifies payoutsMade <= totalPayouts and that the
// investment is completed exactly when every payout has been made.
func (i *Investment) CheckInvariants() error {
	if i.PayoutsMade < 0 || i.PayoutsMade > i.TotalPayouts {
		return fmt.Errorf("investment %s: payouts made %d outside [0, %d]", i.ID, i.PayoutsMade, i.TotalPayouts)
	}
	completed := i.Status == InvestmentStatusCompleted
	if completed != (i.PayoutsMade == i.TotalPayouts) {
		return fmt.Errorf("investment %s: status %s with %d/%d payouts", i.ID, i.Status, i.PayoutsMade, i.TotalPayouts)
	}
	return nil
}

func (i *Investment) transitionError(action string) error {
	return shared.NewReasonedError(shared.CodeInvalidState, ReasonInvalidTransition,
		fmt.Sprintf("cannot %s an investment in %s status", action, i.Status))
}
