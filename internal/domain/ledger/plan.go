package ledger

import (
	"fmt"
	"strings"

	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InvestmentPlan holds the terms an investor can subscribe to.
// Plans are read-mostly; existing investors are protected from later edits
// by the ROI snapshot taken at activation, not by locking the plan.
type InvestmentPlan struct {
	shared.BaseAggregateRoot

	Name        string          `json:"name"`
	Description string          `json:"description"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	// MaxAmount nil means the plan has no upper bound
	MaxAmount   *decimal.Decimal `json:"max_amount,omitempty"`
	MonthlyRate decimal.Decimal  `json:"monthly_rate"`
	AnnualRate  decimal.Decimal  `json:"annual_rate"`
	// DurationInPeriods is the plan term in months
	DurationInPeriods int     `json:"duration_in_periods"`
	Cadence           Cadence `json:"cadence"`
	Active            bool    `json:"active"`
}

// PlanTerms is the input for creating a plan
type PlanTerms struct {
	Name              string
	Description       string
	MinAmount         decimal.Decimal
	MaxAmount         *decimal.Decimal
	MonthlyRate       decimal.Decimal
	AnnualRate        decimal.Decimal
	DurationInPeriods int
	Cadence           Cadence
	Active            bool
}

// NewInvestmentPlan creates a plan after validating its terms
func NewInvestmentPlan(terms PlanTerms) (*InvestmentPlan, error) {
	name := strings.TrimSpace(terms.Name)
	if name == "" {
		return nil, shared.NewValidationError(ReasonInvalidPlan, "plan name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError(ReasonInvalidPlan, "plan name cannot exceed 100 characters")
	}
	if !terms.MinAmount.IsPositive() {
		return nil, shared.NewValidationError(ReasonInvalidPlan, "minimum amount must be positive")
	}
	if terms.MaxAmount != nil && terms.MaxAmount.LessThan(terms.MinAmount) {
		return nil, shared.NewValidationError(ReasonInvalidPlan, "maximum amount cannot be below the minimum")
	}
	for label, rate := range map[string]decimal.Decimal{"monthly": terms.MonthlyRate, "annual": terms.AnnualRate} {
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return nil, shared.NewValidationError(ReasonInvalidPlan, fmt.Sprintf("%s rate must be between 0 and 100", label))
		}
	}
	if terms.DurationInPeriods <= 0 {
		return nil, shared.NewValidationError(ReasonInvalidPlan, "duration must be at least one month")
	}
	cadence := terms.Cadence
	if cadence == "" {
		cadence = CadenceMonthly
	}
	if !cadence.IsValid() {
		return nil, shared.NewValidationError(ReasonInvalidCadence, "cadence must be monthly or annually")
	}

	return &InvestmentPlan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Description:       strings.TrimSpace(terms.Description),
		MinAmount:         terms.MinAmount,
		MaxAmount:         terms.MaxAmount,
		MonthlyRate:       terms.MonthlyRate,
		AnnualRate:        terms.AnnualRate,
		DurationInPeriods: terms.DurationInPeriods,
		Cadence:           cadence,
		Active:            terms.Active,
	}, nil
}

// ValidateAmount checks min <= amount <= max (max optional)
func (p *InvestmentPlan) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError(ReasonInvalidAmount, "amount must be positive")
	}
	if amount.LessThan(p.MinAmount) {
		return shared.NewValidationError(ReasonAmountBelowMinimum,
			fmt.Sprintf("amount %s is below the plan minimum %s", amount.StringFixed(2), p.MinAmount.StringFixed(2)))
	}
	if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
		return shared.NewValidationError(ReasonAmountAboveMaximum,
			fmt.Sprintf("amount %s exceeds the plan maximum %s", amount.StringFixed(2), p.MaxAmount.StringFixed(2)))
	}
	return nil
}

// RateFor returns the rate that applies to cadence
func (p *InvestmentPlan) RateFor(cadence Cadence) decimal.Decimal {
	if cadence == CadenceMonthly {
		return p.MonthlyRate
	}
	return p.AnnualRate
}

// TotalPayouts is the number of returns an investment in this plan earns.
// Monthly cadence pays once per month of the term; annual cadence pays once
// per started year.
func (p *InvestmentPlan) TotalPayouts(cadence Cadence) int {
	if cadence == CadenceAnnually {
		return (p.DurationInPeriods + 11) / 12
	}
	return p.DurationInPeriods
}
