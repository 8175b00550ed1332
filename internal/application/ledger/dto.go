package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// PlanResponse represents an investment plan in API responses
type PlanResponse struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	MinAmount         decimal.Decimal  `json:"min_amount"`
	MaxAmount         *decimal.Decimal `json:"max_amount,omitempty"`
	MonthlyRate       decimal.Decimal  `json:"monthly_rate"`
	AnnualRate        decimal.Decimal  `json:"annual_rate"`
	DurationInPeriods int              `json:"duration_in_periods"`
	Cadence           string           `json:"cadence"`
	Active            bool             `json:"active"`
	CreatedAt         time.Time        `json:"created_at"`
}

// CreatePlanRequest represents a request to create an investment plan
type CreatePlanRequest struct {
	Name              string           `json:"name" binding:"required,min=1,max=100"`
	Description       string           `json:"description" binding:"max=2000"`
	MinAmount         decimal.Decimal  `json:"min_amount" binding:"required"`
	MaxAmount         *decimal.Decimal `json:"max_amount"`
	MonthlyRate       decimal.Decimal  `json:"monthly_rate"`
	AnnualRate        decimal.Decimal  `json:"annual_rate"`
	DurationInPeriods int              `json:"duration_in_periods" binding:"required,min=1"`
	Cadence           string           `json:"cadence" binding:"omitempty,cadence"`
	Active            *bool            `json:"active"`
}

// SelectPlanRequest represents a member choosing a plan
type SelectPlanRequest struct {
	UserID  string          `json:"-"`
	PlanID  uuid.UUID       `json:"plan_id" binding:"required"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	Cadence string          `json:"cadence" binding:"omitempty,cadence"`
}

// InvestmentResponse represents an investment in API responses
type InvestmentResponse struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	PlanID           uuid.UUID       `json:"plan_id"`
	PlanName         string          `json:"plan_name"`
	Amount           decimal.Decimal `json:"amount"`
	Cadence          string          `json:"cadence"`
	TotalPayouts     int             `json:"total_payouts"`
	PayoutsMade      int             `json:"payouts_made"`
	RemainingPayouts int             `json:"remaining_payouts"`
	Status           string          `json:"status"`
	NextPayoutDate   *time.Time      `json:"next_payout_date,omitempty"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

// OpenPaymentRequest represents a request to open a pending payment.
// Amount is ignored for registration and investment payments; the ledger
// uses the configured fee or the investment amount.
type OpenPaymentRequest struct {
	UserID       string           `json:"-"`
	Type         string           `json:"type" binding:"required,oneof=registration investment"`
	Method       string           `json:"method" binding:"required,payment_method"`
	Currency     string           `json:"currency" binding:"omitempty,len=3"`
	Amount       *decimal.Decimal `json:"amount"`
	InvestmentID *uuid.UUID       `json:"investment_id"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID           uuid.UUID       `json:"id"`
	Reference    string          `json:"reference"`
	UserID       string          `json:"user_id"`
	InvestmentID *uuid.UUID      `json:"investment_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Method       string          `json:"method"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Description  string          `json:"description,omitempty"`
	CheckoutURL  string          `json:"checkout_url,omitempty"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	FailedAt     *time.Time      `json:"failed_at,omitempty"`
	FailReason   string          `json:"fail_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ConfirmPaymentRequest confirms a payment by reference, or by
// (user, type, method) when the reference is unavailable.
type ConfirmPaymentRequest struct {
	Reference string `json:"reference"`
	UserID    string `json:"user_id"`
	Type      string `json:"type" binding:"omitempty,oneof=registration investment roi"`
	Method    string `json:"method" binding:"omitempty,payment_method"`
}

// GatewayCallback is the payload a payment gateway delivers asynchronously
type GatewayCallback struct {
	Reference    string          `json:"reference" binding:"required"`
	Status       string          `json:"status" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	GatewayTxnID string          `json:"transaction_id"`
	Reason       string          `json:"reason"`
}

// ConfirmResult is the outcome of a confirmation attempt. AlreadyConfirmed
// marks an idempotent replay: the payment was confirmed earlier and nothing
// changed this time.
type ConfirmResult struct {
	Payment          PaymentResponse `json:"payment"`
	AlreadyConfirmed bool            `json:"already_confirmed"`
	Duplicate        bool            `json:"duplicate,omitempty"`
	MemberNumber     string          `json:"member_number,omitempty"`
	InvestmentID     *uuid.UUID      `json:"investment_id,omitempty"`
	FirstReturnID    *uuid.UUID      `json:"first_return_id,omitempty"`
}

// ROIResponse represents an ROI record in API responses
type ROIResponse struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             string          `json:"user_id"`
	InvestmentID       uuid.UUID       `json:"investment_id"`
	Rate               decimal.Decimal `json:"rate"`
	PeriodReturnAmount decimal.Decimal `json:"period_return_amount"`
	Currency           string          `json:"currency"`
	Cadence            string          `json:"cadence"`
	TotalPayouts       int             `json:"total_payouts"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	PayoutsMade        int             `json:"payouts_made"`
	RemainingPayouts   int             `json:"remaining_payouts"`
	LastPayoutDate     *time.Time      `json:"last_payout_date,omitempty"`
	NextPayoutDate     *time.Time      `json:"next_payout_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ReturnResponse represents a scheduled or settled payout in API responses
type ReturnResponse struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"user_id"`
	InvestmentID uuid.UUID       `json:"investment_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PayoutDate   time.Time       `json:"payout_date"`
	Status       string          `json:"status"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	PaymentID    *uuid.UUID      `json:"payment_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// WithdrawRequest asks the ledger to settle one return
type WithdrawRequest struct {
	UserID       string    `json:"user_id" binding:"required"`
	InvestmentID uuid.UUID `json:"investment_id" binding:"required"`
	ReturnID     uuid.UUID `json:"return_id" binding:"required"`
}

// WithdrawResult describes a settled payout
type WithdrawResult struct {
	PaymentID        uuid.UUID         `json:"payment_id"`
	Reference        string            `json:"reference"`
	ReturnID         uuid.UUID         `json:"return_id"`
	Amount           decimal.Decimal   `json:"amount"`
	Currency         string            `json:"currency"`
	PayoutMethod     string            `json:"payout_method"`
	PayoutDetails    map[string]string `json:"payout_details"`
	NextPayoutDate   *time.Time        `json:"next_payout_date"`
	InvestmentStatus string            `json:"investment_status"`
	PayoutsMade      int               `json:"payouts_made"`
	TotalPayouts     int               `json:"total_payouts"`
}

// SetPayoutRequest asks for a return to be scheduled manually. PayoutDate
// defaults to the investment's next payout date.
type SetPayoutRequest struct {
	InvestmentID uuid.UUID  `json:"investment_id" binding:"required"`
	PayoutDate   *time.Time `json:"payout_date"`
}

// SetPayoutResult is the scheduled return and whether this call created it
type SetPayoutResult struct {
	Return  ReturnResponse `json:"return"`
	Created bool           `json:"created"`
}

// TickResult summarises one scheduler tick
type TickResult struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Due       int           `json:"due_investments"`
	Created   int64         `json:"created"`
	Promoted  int64         `json:"promoted"`
	Failed    int           `json:"failed"`
	Skipped   bool          `json:"skipped"`
}

// DashboardStats holds the admin dashboard figures
type DashboardStats struct {
	TotalDeposits       decimal.Decimal  `json:"total_deposits"`
	TotalInvested       decimal.Decimal  `json:"total_invested"`
	TotalROIPaid        decimal.Decimal  `json:"total_roi_paid"`
	CompletionRate      decimal.Decimal  `json:"completion_rate"`
	DueReturns          int64            `json:"due_returns"`
	InvestmentsByStatus map[string]int64 `json:"investments_by_status"`
	Currency            string           `json:"currency"`
}

// ListFilter represents paging options for list queries
type ListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Status   string `form:"status"`
	UserID   string `form:"user_id"`
}

// MemberResponse represents a member profile in API responses
type MemberResponse struct {
	UserID           string            `json:"user_id"`
	MemberNumber     string            `json:"member_number,omitempty"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone,omitempty"`
	RegistrationPaid bool              `json:"registration_paid"`
	KycStatus        string            `json:"kyc_status"`
	PayoutMethod     string            `json:"payout_method,omitempty"`
	PayoutDetails    map[string]string `json:"payout_details,omitempty"`
}

// RegisterMemberRequest creates or updates a member profile
type RegisterMemberRequest struct {
	UserID string `json:"user_id" binding:"required,max=64"`
	Name   string `json:"name" binding:"required,max=200"`
	Email  string `json:"email" binding:"required,email"`
	Phone  string `json:"phone" binding:"max=32"`
}

// SetPayoutMethodRequest carries one payout destination. Kind selects which
// of the detail blocks is read.
type SetPayoutMethodRequest struct {
	Kind          string `json:"kind" binding:"required,payment_method"`
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	IBAN          string `json:"iban"`
	SwiftCode     string `json:"swift_code"`
	IFSCCode      string `json:"ifsc_code"`
	SortCode      string `json:"sort_code"`
	RoutingNumber string `json:"routing_number"`
	Collection    string `json:"collection_point"`
	CardToken     string `json:"card_token"`
	Last4         string `json:"last4"`
	WalletAddress string `json:"wallet_address"`
	CoinType      string `json:"coin_type"`
}

// ToPayoutMethod builds the tagged payout variant selected by Kind
func (r SetPayoutMethodRequest) ToPayoutMethod() (ledger.PayoutMethod, error) {
	kind, err := ledger.ParsePaymentMethod(r.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ledger.PaymentMethodBank:
		return ledger.BankPayout{
			AccountHolder: r.AccountHolder,
			AccountNumber: r.AccountNumber,
			BankName:      r.BankName,
			IBAN:          r.IBAN,
			SwiftCode:     r.SwiftCode,
			IFSCCode:      r.IFSCCode,
			SortCode:      r.SortCode,
			RoutingNumber: r.RoutingNumber,
		}, nil
	case ledger.PaymentMethodCash:
		return ledger.CashPayout{CollectionPoint: r.Collection}, nil
	case ledger.PaymentMethodCard:
		return ledger.CardPayout{CardToken: r.CardToken, Last4: r.Last4}, nil
	default:
		return ledger.CryptoPayout{WalletAddress: r.WalletAddress, CoinType: r.CoinType}, nil
	}
}

// ToPlanResponse converts a domain plan to a response
func ToPlanResponse(p *ledger.InvestmentPlan) PlanResponse {
	return PlanResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		MinAmount:         p.MinAmount,
		MaxAmount:         p.MaxAmount,
		MonthlyRate:       p.MonthlyRate,
		AnnualRate:        p.AnnualRate,
		DurationInPeriods: p.DurationInPeriods,
		Cadence:           p.Cadence.String(),
		Active:            p.Active,
		CreatedAt:         p.CreatedAt,
	}
}

// ToInvestmentResponse converts a domain investment to a response
func ToInvestmentResponse(i *ledger.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:               i.ID,
		UserID:           i.UserID,
		PlanID:           i.PlanID,
		PlanName:         i.PlanName,
		Amount:           i.Amount,
		Cadence:          i.Cadence.String(),
		TotalPayouts:     i.TotalPayouts,
		PayoutsMade:      i.PayoutsMade,
		RemainingPayouts: i.RemainingPayouts(),
		Status:           i.Status.String(),
		NextPayoutDate:   i.NextPayoutDate,
		StartDate:        i.StartDate,
		CompletedAt:      i.CompletedAt,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
		Version:          i.Version,
	}
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID,
		Reference:    p.Reference,
		UserID:       p.UserID,
		InvestmentID: p.InvestmentID,
		Amount:       p.Amount,
		Currency:     string(p.Currency),
		Method:       p.Method.String(),
		Type:         p.Type.String(),
		Status:       p.Status.String(),
		Description:  p.Description,
		CheckoutURL:  p.CheckoutURL,
		ConfirmedAt:  p.ConfirmedAt,
		FailedAt:     p.FailedAt,
		FailReason:   p.FailReason,
		CreatedAt:    p.CreatedAt,
	}
}

// ToROIResponse converts a domain ROI record to a response. nextPayoutDate
// comes from the owning investment.
func ToROIResponse(r *ledger.ROI, nextPayoutDate *time.Time) ROIResponse {
	return ROIResponse{
		ID:                 r.ID,
		UserID:             r.UserID,
		InvestmentID:       r.InvestmentID,
		Rate:               r.Rate,
		PeriodReturnAmount: r.PeriodReturnAmount,
		Currency:           string(r.Currency),
		Cadence:            r.Cadence.String(),
		TotalPayouts:       r.TotalPayouts,
		TotalPaid:          r.TotalPaid,
		PayoutsMade:        r.PayoutsMade,
		RemainingPayouts:   r.RemainingPayouts(),
		LastPayoutDate:     r.LastPayoutDate,
		NextPayoutDate:     nextPayoutDate,
		CreatedAt:          r.CreatedAt,
	}
}

// ToReturnResponse converts a domain return to a response
func ToReturnResponse(r *ledger.Return) ReturnResponse {
	return ReturnResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		InvestmentID: r.InvestmentID,
		Amount:       r.Amount,
		Currency:     string(r.Currency),
		PayoutDate:   r.PayoutDate,
		Status:       r.Status.String(),
		PaidAt:       r.PaidAt,
		PaymentID:    r.PaymentID,
		CreatedAt:    r.CreatedAt,
	}
}

// ToMemberResponse converts a member profile to a response
func ToMemberResponse(m *ledger.Member) MemberResponse {
	resp := MemberResponse{
		UserID:           m.UserID,
		MemberNumber:     m.MemberNumber,
		Name:             m.Name,
		Email:            m.Email,
		Phone:            m.Phone,
		RegistrationPaid: m.RegistrationPaid,
		KycStatus:        m.KycStatus.String(),
	}
	if m.PayoutMethod != nil {
		resp.PayoutMethod = m.PayoutMethod.Kind().String()
		resp.PayoutDetails = ledger.PayoutDetails(m.PayoutMethod)
	}
	return resp
}
