package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Repositories return (nil, nil) from single-row finders when no row matches.

// PlanRepository defines persistence for investment plans
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InvestmentPlan, error)
	FindByName(ctx context.Context, name string) (*InvestmentPlan, error)
	// FindActive returns active plans ordered by minimum amount
	FindActive(ctx context.Context) ([]InvestmentPlan, error)
	Save(ctx context.Context, plan *InvestmentPlan) error
}

// InvestmentFilter defines filtering options for investment queries
type InvestmentFilter struct {
	shared.Filter
	UserID string
	Status *InvestmentStatus
}

// InvestmentRepository defines persistence for investments
type InvestmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Investment, error)
	// FindByIDForUpdate locks the row for the rest of the transaction where the database supports it
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Investment, error)
	FindPendingByUser(ctx context.Context, userID string) (*Investment, error)
	ExistsActiveForUser(ctx context.Context, userID string) (bool, error)
	// FindDueForPayout returns active investments whose next payout date is at or before now
	FindDueForPayout(ctx context.Context, now time.Time, limit int) ([]Investment, error)
	FindAll(ctx context.Context, filter InvestmentFilter) ([]Investment, int64, error)
	Save(ctx context.Context, inv *Investment) error
	CountByStatus(ctx context.Context) (map[InvestmentStatus]int64, error)
	SumAmountByStatus(ctx context.Context, status InvestmentStatus) (decimal.Decimal, error)
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	UserID string
	Type   *PaymentType
	Status *PaymentStatus
}

// PaymentRepository defines persistence for payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByReference(ctx context.Context, reference string) (*Payment, error)
	// FindLatest returns the most recent payment for (user, type, method) in status
	FindLatest(ctx context.Context, userID string, typ PaymentType, method PaymentMethod, status PaymentStatus) (*Payment, error)
	ExistsSuccessful(ctx context.Context, userID string, typ PaymentType) (bool, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)
	Create(ctx context.Context, p *Payment) error
	// TransitionStatus performs UPDATE ... SET status=to WHERE id=? AND status=from.
	// It returns false when no row was in the expected status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus, at time.Time, failReason string) (bool, error)
	UpdateCheckout(ctx context.Context, id uuid.UUID, checkoutURL, gatewayTxnID string) error
	SumSuccessful(ctx context.Context, types ...PaymentType) (decimal.Decimal, error)
}

// ROIRepository defines persistence for ROI records
type ROIRepository interface {
	FindByInvestment(ctx context.Context, userID string, investmentID uuid.UUID) (*ROI, error)
	// CreateIfAbsent inserts roi unless a record for its (user, investment) exists.
	// It returns the stored record and whether it was created.
	CreateIfAbsent(ctx context.Context, roi *ROI) (*ROI, bool, error)
	// ApplyPayout adds amount to total_paid and increments payouts_made
	ApplyPayout(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error
	FindAll(ctx context.Context, filter ROIFilter) ([]ROI, int64, error)
	SumTotalPaid(ctx context.Context) (decimal.Decimal, error)
}

// ROIFilter defines filtering options for ROI queries
type ROIFilter struct {
	shared.Filter
	UserID string
}

// ReturnFilter defines filtering options for return queries
type ReturnFilter struct {
	shared.Filter
	UserID       string
	InvestmentID *uuid.UUID
	Status       *ReturnStatus
}

// ReturnRepository defines persistence for returns
type ReturnRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Return, error)
	FindByInvestmentAndDate(ctx context.Context, investmentID uuid.UUID, payoutDate time.Time) (*Return, error)
	// CreateIfAbsent inserts r unless a return for (investment, payout date)
	// exists, relying on the unique key. It returns the stored row and
	// whether it was created.
	CreateIfAbsent(ctx context.Context, r *Return) (*Return, bool, error)
	// PromoteDue moves every pending return with payout_date <= now to due
	PromoteDue(ctx context.Context, now time.Time) (int64, error)
	// MarkPaid performs UPDATE ... SET status='paid' WHERE id=? AND status<>'paid'.
	// It returns false when the return was already paid.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID uuid.UUID, paidAt time.Time) (bool, error)
	FindAll(ctx context.Context, filter ReturnFilter) ([]Return, int64, error)
	CountByStatus(ctx context.Context, status ReturnStatus) (int64, error)
	// CountUnpaid counts the investment's returns that are not yet paid
	CountUnpaid(ctx context.Context, investmentID uuid.UUID) (int64, error)
}

// MemberRepository defines persistence for member profiles
type MemberRepository interface {
	FindByUserID(ctx context.Context, userID string) (*Member, error)
	Save(ctx context.Context, m *Member) error
	// AssignMemberNumber sets the member number and paid flag if no number
	// is assigned yet. It returns the number the member ends up with and
	// whether this call assigned it.
	AssignMemberNumber(ctx context.Context, userID, prefix string) (string, bool, error)
	// MarkRegistrationPaid sets the paid flag
	MarkRegistrationPaid(ctx context.Context, userID string) error
}
