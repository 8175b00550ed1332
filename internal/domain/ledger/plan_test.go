package ledger

import (
	"testing"

	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validTerms() PlanTerms {
	return PlanTerms{
		Name:              "Silver",
		MinAmount:         decimal.NewFromInt(1000),
		MaxAmount:         decPtr("5000"),
		MonthlyRate:       decimal.NewFromInt(2),
		AnnualRate:        decimal.NewFromInt(30),
		DurationInPeriods: 12,
		Active:            true,
	}
}

func TestNewInvestmentPlan(t *testing.T) {
	t.Run("valid terms default to monthly cadence", func(t *testing.T) {
		p, err := NewInvestmentPlan(validTerms())
		require.NoError(t, err)
		assert.Equal(t, CadenceMonthly, p.Cadence)
		assert.Equal(t, "Silver", p.Name)
		assert.Equal(t, 1, p.Version)
	})

	tests := []struct {
		name   string
		mutate func(*PlanTerms)
	}{
		{"empty name", func(t *PlanTerms) { t.Name = "  " }},
		{"zero minimum", func(t *PlanTerms) { t.MinAmount = decimal.Zero }},
		{"max below min", func(t *PlanTerms) { t.MaxAmount = decPtr("10") }},
		{"negative rate", func(t *PlanTerms) { t.MonthlyRate = decimal.NewFromInt(-1) }},
		{"rate over 100", func(t *PlanTerms) { t.AnnualRate = decimal.NewFromInt(101) }},
		{"zero duration", func(t *PlanTerms) { t.DurationInPeriods = 0 }},
		{"bad cadence", func(t *PlanTerms) { t.Cadence = "weekly" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := validTerms()
			tt.mutate(&terms)
			_, err := NewInvestmentPlan(terms)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestInvestmentPlan_ValidateAmount(t *testing.T) {
	p, err := NewInvestmentPlan(validTerms())
	require.NoError(t, err)

	assert.NoError(t, p.ValidateAmount(decimal.NewFromInt(1000)))
	assert.NoError(t, p.ValidateAmount(decimal.NewFromInt(5000)))

	err = p.ValidateAmount(decimal.NewFromInt(999))
	assert.Equal(t, ReasonAmountBelowMinimum, shared.ReasonOf(err))

	err = p.ValidateAmount(decimal.NewFromInt(5001))
	assert.Equal(t, ReasonAmountAboveMaximum, shared.ReasonOf(err))

	p.MaxAmount = nil
	assert.NoError(t, p.ValidateAmount(decimal.NewFromInt(1_000_000)))
}

func TestInvestmentPlan_TotalPayouts(t *testing.T) {
	p, err := NewInvestmentPlan(validTerms())
	require.NoError(t, err)

	assert.Equal(t, 12, p.TotalPayouts(CadenceMonthly))
	assert.Equal(t, 1, p.TotalPayouts(CadenceAnnually))

	p.DurationInPeriods = 18
	assert.Equal(t, 2, p.TotalPayouts(CadenceAnnually))
}
