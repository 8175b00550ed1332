package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvestmentPlanModel is the persistence model for investment plans
type InvestmentPlanModel struct {
	AggregateModel
	Name              string           `gorm:"type:varchar(100);not null;uniqueIndex"`
	Description       string           `gorm:"type:text"`
	MinAmount         decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	MaxAmount         *decimal.Decimal `gorm:"type:decimal(18,4)"`
	MonthlyRate       decimal.Decimal  `gorm:"type:decimal(9,4);not null"`
	AnnualRate        decimal.Decimal  `gorm:"type:decimal(9,4);not null"`
	DurationInPeriods int              `gorm:"not null"`
	Cadence           string           `gorm:"type:varchar(16);not null;default:'monthly'"`
	Active            bool             `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (InvestmentPlanModel) TableName() string {
	return "investment_plans"
}

// ToDomain converts the persistence model to a domain InvestmentPlan
func (m *InvestmentPlanModel) ToDomain() *ledger.InvestmentPlan {
	return &ledger.InvestmentPlan{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Description:       m.Description,
		MinAmount:         m.MinAmount,
		MaxAmount:         m.MaxAmount,
		MonthlyRate:       m.MonthlyRate,
		AnnualRate:        m.AnnualRate,
		DurationInPeriods: m.DurationInPeriods,
		Cadence:           ledger.Cadence(m.Cadence),
		Active:            m.Active,
	}
}

// InvestmentPlanModelFromDomain creates a persistence model from a domain plan
func InvestmentPlanModelFromDomain(p *ledger.InvestmentPlan) *InvestmentPlanModel {
	m := &InvestmentPlanModel{
		Name:              p.Name,
		Description:       p.Description,
		MinAmount:         p.MinAmount,
		MaxAmount:         p.MaxAmount,
		MonthlyRate:       p.MonthlyRate,
		AnnualRate:        p.AnnualRate,
		DurationInPeriods: p.DurationInPeriods,
		Cadence:           string(p.Cadence),
		Active:            p.Active,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// InvestmentModel is the persistence model for investments. A member holds
// at most one pending and at most one active investment.
type InvestmentModel struct {
	AggregateModel
	UserID         string          `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_investments_user_pending,where:status = 'pending';uniqueIndex:idx_investments_user_active,where:status = 'active'"`
	PlanID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	PlanName       string          `gorm:"type:varchar(100)"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Cadence        string          `gorm:"type:varchar(16);not null"`
	TotalPayouts   int             `gorm:"not null"`
	PayoutsMade    int             `gorm:"not null;default:0"`
	Status         string          `gorm:"type:varchar(16);not null;index"`
	NextPayoutDate *time.Time      `gorm:"index"`
	StartDate      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
}

func (InvestmentModel) TableName() string {
	return "investments"
}

// ToDomain converts the persistence model to a domain Investment
func (m *InvestmentModel) ToDomain() *ledger.Investment {
	return &ledger.Investment{
		OwnedAggregateRoot: shared.OwnedAggregateRoot{
			BaseAggregateRoot: m.ToDomainAggregateRoot(),
			UserID:            m.UserID,
		},
		PlanID:         m.PlanID,
		PlanName:       m.PlanName,
		Amount:         m.Amount,
		Cadence:        ledger.Cadence(m.Cadence),
		TotalPayouts:   m.TotalPayouts,
		PayoutsMade:    m.PayoutsMade,
		Status:         ledger.InvestmentStatus(m.Status),
		NextPayoutDate: utcPtr(m.NextPayoutDate),
		StartDate:      utcPtr(m.StartDate),
		CompletedAt:    utcPtr(m.CompletedAt),
		CancelledAt:    utcPtr(m.CancelledAt),
	}
}

// InvestmentModelFromDomain creates a persistence model from a domain investment
func InvestmentModelFromDomain(i *ledger.Investment) *InvestmentModel {
	m := &InvestmentModel{
		PlanID:         i.PlanID,
		PlanName:       i.PlanName,
		Amount:         i.Amount,
		Cadence:        string(i.Cadence),
		TotalPayouts:   i.TotalPayouts,
		PayoutsMade:    i.PayoutsMade,
		Status:         string(i.Status),
		NextPayoutDate: i.NextPayoutDate,
		StartDate:      i.StartDate,
		CompletedAt:    i.CompletedAt,
		CancelledAt:    i.CancelledAt,
	}
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.UserID = i.UserID
	return m
}

// PaymentModel is the persistence model for payments
type PaymentModel struct {
	OwnedAggregateModel
	Reference    string          `gorm:"type:varchar(80);not null;uniqueIndex"`
	InvestmentID *uuid.UUID      `gorm:"type:uuid;index"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	Method       string          `gorm:"type:varchar(16);not null"`
	Type         string          `gorm:"type:varchar(16);not null;index"`
	Status       string          `gorm:"type:varchar(16);not null;index"`
	Description  string          `gorm:"type:varchar(255)"`
	CheckoutURL  string          `gorm:"type:varchar(512)"`
	GatewayTxnID string          `gorm:"type:varchar(128)"`
	ConfirmedAt  *time.Time
	FailedAt     *time.Time
	FailReason   string `gorm:"type:varchar(255)"`
}

func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *ledger.Payment {
	return &ledger.Payment{
		OwnedAggregateRoot: m.ToDomainOwnedAggregateRoot(),
		Reference:          m.Reference,
		InvestmentID:       m.InvestmentID,
		Amount:             m.Amount,
		Currency:           valueobject.Currency(m.Currency),
		Method:             ledger.PaymentMethod(m.Method),
		Type:               ledger.PaymentType(m.Type),
		Status:             ledger.PaymentStatus(m.Status),
		Description:        m.Description,
		CheckoutURL:        m.CheckoutURL,
		GatewayTxnID:       m.GatewayTxnID,
		ConfirmedAt:        utcPtr(m.ConfirmedAt),
		FailedAt:           utcPtr(m.FailedAt),
		FailReason:         m.FailReason,
	}
}

// PaymentModelFromDomain creates a persistence model from a domain payment
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	m := &PaymentModel{
		Reference:    p.Reference,
		InvestmentID: p.InvestmentID,
		Amount:       p.Amount,
		Currency:     string(p.Currency),
		Method:       string(p.Method),
		Type:         string(p.Type),
		Status:       string(p.Status),
		Description:  p.Description,
		CheckoutURL:  p.CheckoutURL,
		GatewayTxnID: p.GatewayTxnID,
		ConfirmedAt:  p.ConfirmedAt,
		FailedAt:     p.FailedAt,
		FailReason:   p.FailReason,
	}
	m.FromDomainOwnedAggregateRoot(p.OwnedAggregateRoot)
	return m
}

// ROIModel is the persistence model for ROI records, unique per (user, investment)
type ROIModel struct {
	AggregateModel
	UserID             string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_roi_user_investment,priority:1"`
	InvestmentID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_roi_user_investment,priority:2"`
	Rate               decimal.Decimal `gorm:"type:decimal(9,4);not null"`
	PeriodReturnAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency           string          `gorm:"type:varchar(3);not null"`
	Cadence            string          `gorm:"type:varchar(16);not null"`
	TotalPayouts       int             `gorm:"not null"`
	TotalPaid          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PayoutsMade        int             `gorm:"not null;default:0"`
	LastPayoutDate     *time.Time
}

func (ROIModel) TableName() string {
	return "roi_records"
}

// ToDomain converts the persistence model to a domain ROI
func (m *ROIModel) ToDomain() *ledger.ROI {
	return &ledger.ROI{
		OwnedAggregateRoot: shared.OwnedAggregateRoot{
			BaseAggregateRoot: m.ToDomainAggregateRoot(),
			UserID:            m.UserID,
		},
		InvestmentID:       m.InvestmentID,
		Rate:               m.Rate,
		PeriodReturnAmount: m.PeriodReturnAmount,
		Currency:           valueobject.Currency(m.Currency),
		Cadence:            ledger.Cadence(m.Cadence),
		TotalPayouts:       m.TotalPayouts,
		TotalPaid:          m.TotalPaid,
		PayoutsMade:        m.PayoutsMade,
		LastPayoutDate:     utcPtr(m.LastPayoutDate),
	}
}

// ROIModelFromDomain creates a persistence model from a domain ROI
func ROIModelFromDomain(r *ledger.ROI) *ROIModel {
	m := &ROIModel{
		UserID:             r.UserID,
		InvestmentID:       r.InvestmentID,
		Rate:               r.Rate,
		PeriodReturnAmount: r.PeriodReturnAmount,
		Currency:           string(r.Currency),
		Cadence:            string(r.Cadence),
		TotalPayouts:       r.TotalPayouts,
		TotalPaid:          r.TotalPaid,
		PayoutsMade:        r.PayoutsMade,
		LastPayoutDate:     r.LastPayoutDate,
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	return m
}

// ReturnModel is the persistence model for returns, unique per (investment, payout date)
type ReturnModel struct {
	OwnedAggregateModel
	InvestmentID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_returns_investment_payout,priority:1"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	PayoutDate   time.Time       `gorm:"not null;uniqueIndex:idx_returns_investment_payout,priority:2;index"`
	Status       string          `gorm:"type:varchar(16);not null;index"`
	PaidAt       *time.Time
	PaymentID    *uuid.UUID `gorm:"type:uuid"`
}

func (ReturnModel) TableName() string {
	return "returns"
}

// ToDomain converts the persistence model to a domain Return
func (m *ReturnModel) ToDomain() *ledger.Return {
	return &ledger.Return{
		OwnedAggregateRoot: m.ToDomainOwnedAggregateRoot(),
		InvestmentID:       m.InvestmentID,
		Amount:             m.Amount,
		Currency:           valueobject.Currency(m.Currency),
		PayoutDate:         m.PayoutDate.UTC(),
		Status:             ledger.ReturnStatus(m.Status),
		PaidAt:             utcPtr(m.PaidAt),
		PaymentID:          m.PaymentID,
	}
}

// ReturnModelFromDomain creates a persistence model from a domain return
func ReturnModelFromDomain(r *ledger.Return) *ReturnModel {
	m := &ReturnModel{
		InvestmentID: r.InvestmentID,
		Amount:       r.Amount,
		Currency:     string(r.Currency),
		PayoutDate:   r.PayoutDate,
		Status:       string(r.Status),
		PaidAt:       r.PaidAt,
		PaymentID:    r.PaymentID,
	}
	m.FromDomainOwnedAggregateRoot(r.OwnedAggregateRoot)
	return m
}

// MemberModel is the persistence model for member profiles
type MemberModel struct {
	AggregateModel
	UserID           string  `gorm:"type:varchar(64);not null;uniqueIndex"`
	MemberNumber     *string `gorm:"type:varchar(32);uniqueIndex"`
	Name             string  `gorm:"type:varchar(200)"`
	Email            string  `gorm:"type:varchar(200);index"`
	Phone            string  `gorm:"type:varchar(50)"`
	RegistrationPaid bool    `gorm:"not null;default:false"`
	KycStatus        string  `gorm:"type:varchar(16);not null;default:'pending'"`
	// PayoutMethod is the JSON envelope written by ledger.MarshalPayoutMethod
	PayoutMethod *string `gorm:"type:text"`
}

func (MemberModel) TableName() string {
	return "ledger_members"
}

// ToDomain converts the persistence model to a domain Member.
// An undecodable payout method is surfaced as an error rather than dropped.
func (m *MemberModel) ToDomain() (*ledger.Member, error) {
	member := &ledger.Member{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		Name:              m.Name,
		Email:             m.Email,
		Phone:             m.Phone,
		RegistrationPaid:  m.RegistrationPaid,
		KycStatus:         ledger.KycStatus(m.KycStatus),
	}
	if m.MemberNumber != nil {
		member.MemberNumber = *m.MemberNumber
	}
	if m.PayoutMethod != nil {
		method, err := ledger.UnmarshalPayoutMethod([]byte(*m.PayoutMethod))
		if err != nil {
			return nil, err
		}
		member.PayoutMethod = method
	}
	return member, nil
}

// MemberModelFromDomain creates a persistence model from a domain member
func MemberModelFromDomain(mem *ledger.Member) (*MemberModel, error) {
	m := &MemberModel{
		UserID:           mem.UserID,
		Name:             mem.Name,
		Email:            mem.Email,
		Phone:            mem.Phone,
		RegistrationPaid: mem.RegistrationPaid,
		KycStatus:        string(mem.KycStatus),
	}
	if mem.MemberNumber != "" {
		n := mem.MemberNumber
		m.MemberNumber = &n
	}
	if mem.PayoutMethod != nil {
		data, err := ledger.MarshalPayoutMethod(mem.PayoutMethod)
		if err != nil {
			return nil, err
		}
		s := string(data)
		m.PayoutMethod = &s
	}
	m.FromDomainAggregateRoot(mem.BaseAggregateRoot)
	return m, nil
}

// SequenceModel holds named counters such as the member number sequence
type SequenceModel struct {
	Name      string `gorm:"type:varchar(64);primaryKey"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (SequenceModel) TableName() string {
	return "ledger_sequences"
}

// AllModels lists every ledger model, for AutoMigrate in tests and tools
func AllModels() []interface{} {
	return []interface{}{
		&InvestmentPlanModel{},
		&InvestmentModel{},
		&PaymentModel{},
		&ROIModel{},
		&ReturnModel{},
		&MemberModel{},
		&SequenceModel{},
	}
}
