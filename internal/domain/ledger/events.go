package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvestmentSelected   = "InvestmentSelected"
	EventTypeInvestmentActivated  = "InvestmentActivated"
	EventTypeInvestmentCompleted  = "InvestmentCompleted"
	EventTypePaymentConfirmed     = "PaymentConfirmed"
	EventTypePaymentFailed        = "PaymentFailed"
	EventTypeReturnScheduled      = "ReturnScheduled"
	EventTypeReturnSettled        = "ReturnSettled"
	EventTypeMemberNumberAssigned = "MemberNumberAssigned"
)

// InvestmentSelectedEvent is raised when a member picks or re-picks a plan
type InvestmentSelectedEvent struct {
	shared.BaseDomainEvent
	PlanID  uuid.UUID       `json:"plan_id"`
	Amount  decimal.Decimal `json:"amount"`
	Cadence Cadence         `json:"cadence"`
}

func (e *InvestmentSelectedEvent) EventType() string { return EventTypeInvestmentSelected }

func NewInvestmentSelectedEvent(i *Investment) *InvestmentSelectedEvent {
	return &InvestmentSelectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvestmentSelected, "Investment", i.ID, i.UserID),
		PlanID:          i.PlanID,
		Amount:          i.Amount,
		Cadence:         i.Cadence,
	}
}

// InvestmentActivatedEvent is raised when the investment payment is confirmed
type InvestmentActivatedEvent struct {
	shared.BaseDomainEvent
	Amount         decimal.Decimal `json:"amount"`
	NextPayoutDate *time.Time      `json:"next_payout_date"`
	TotalPayouts   int             `json:"total_payouts"`
}

func (e *InvestmentActivatedEvent) EventType() string { return EventTypeInvestmentActivated }

func NewInvestmentActivatedEvent(i *Investment) *InvestmentActivatedEvent {
	return &InvestmentActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvestmentActivated, "Investment", i.ID, i.UserID),
		Amount:          i.Amount,
		NextPayoutDate:  i.NextPayoutDate,
		TotalPayouts:    i.TotalPayouts,
	}
}

// InvestmentCompletedEvent is raised when the final payout is settled
type InvestmentCompletedEvent struct {
	shared.BaseDomainEvent
	PayoutsMade int `json:"payouts_made"`
}

func (e *InvestmentCompletedEvent) EventType() string { return EventTypeInvestmentCompleted }

func NewInvestmentCompletedEvent(i *Investment) *InvestmentCompletedEvent {
	return &InvestmentCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvestmentCompleted, "Investment", i.ID, i.UserID),
		PayoutsMade:     i.PayoutsMade,
	}
}

// PaymentConfirmedEvent is raised on the single pending->success transition
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	Reference string          `json:"reference"`
	Type      PaymentType     `json:"type"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (e *PaymentConfirmedEvent) EventType() string { return EventTypePaymentConfirmed }

func NewPaymentConfirmedEvent(p *Payment) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentConfirmed, "Payment", p.ID, p.UserID),
		Reference:       p.Reference,
		Type:            p.Type,
		Method:          p.Method,
		Amount:          p.Amount,
		Currency:        string(p.Currency),
	}
}

// PaymentFailedEvent is raised when a gateway reports a failed payment
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	Reference  string `json:"reference"`
	FailReason string `json:"fail_reason"`
}

func (e *PaymentFailedEvent) EventType() string { return EventTypePaymentFailed }

func NewPaymentFailedEvent(p *Payment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, "Payment", p.ID, p.UserID),
		Reference:       p.Reference,
		FailReason:      p.FailReason,
	}
}

// ReturnScheduledEvent is raised when a new payout period is created
type ReturnScheduledEvent struct {
	shared.BaseDomainEvent
	InvestmentID uuid.UUID       `json:"investment_id"`
	Amount       decimal.Decimal `json:"amount"`
	PayoutDate   time.Time       `json:"payout_date"`
}

func (e *ReturnScheduledEvent) EventType() string { return EventTypeReturnScheduled }

func NewReturnScheduledEvent(r *Return) *ReturnScheduledEvent {
	return &ReturnScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnScheduled, "Return", r.ID, r.UserID),
		InvestmentID:    r.InvestmentID,
		Amount:          r.Amount,
		PayoutDate:      r.PayoutDate,
	}
}

// ReturnSettledEvent is raised when a return is paid out
type ReturnSettledEvent struct {
	shared.BaseDomainEvent
	InvestmentID uuid.UUID       `json:"investment_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentID    *uuid.UUID      `json:"payment_id"`
}

func (e *ReturnSettledEvent) EventType() string { return EventTypeReturnSettled }

func NewReturnSettledEvent(r *Return) *ReturnSettledEvent {
	return &ReturnSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnSettled, "Return", r.ID, r.UserID),
		InvestmentID:    r.InvestmentID,
		Amount:          r.Amount,
		PaymentID:       r.PaymentID,
	}
}

// MemberNumberAssignedEvent is raised the first time a registration fee is confirmed
type MemberNumberAssignedEvent struct {
	shared.BaseDomainEvent
	MemberNumber string `json:"member_number"`
}

func (e *MemberNumberAssignedEvent) EventType() string { return EventTypeMemberNumberAssigned }

func NewMemberNumberAssignedEvent(m *Member) *MemberNumberAssignedEvent {
	return &MemberNumberAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMemberNumberAssigned, "Member", m.ID, m.UserID),
		MemberNumber:    m.MemberNumber,
	}
}
