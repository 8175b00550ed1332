package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeInvestmentWithROI(t *testing.T) (*Investment, *ROI) {
	t.Helper()
	plan := newTestPlan(t, 3)
	inv, err := NewPendingInvestment("user-1", plan, decimal.NewFromInt(2000), CadenceMonthly)
	require.NoError(t, err)
	require.NoError(t, inv.Activate(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	snap, err := NewAccrualEngine().Snapshot(inv.Amount, plan, inv.Cadence)
	require.NoError(t, err)
	return inv, NewROI(inv, snap, valueobject.AED)
}

func TestNewScheduledReturn(t *testing.T) {
	inv, roi := activeInvestmentWithROI(t)
	assert.True(t, roi.PeriodReturnAmount.Equal(decimal.NewFromInt(40)))
	assert.True(t, roi.Rate.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 3, roi.RemainingPayouts())

	r, err := NewScheduledReturn(inv, roi, *inv.NextPayoutDate)
	require.NoError(t, err)
	assert.Equal(t, ReturnStatusPending, r.Status)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, *inv.NextPayoutDate, r.PayoutDate)
	assert.Equal(t, inv.UserID, r.UserID)

	other := *roi
	other.InvestmentID = uuid.New()
	_, err = NewScheduledReturn(inv, &other, *inv.NextPayoutDate)
	assert.True(t, shared.IsValidation(err))
}

func TestReturn_PromoteAndPay(t *testing.T) {
	inv, roi := activeInvestmentWithROI(t)
	r, err := NewScheduledReturn(inv, roi, *inv.NextPayoutDate)
	require.NoError(t, err)

	assert.False(t, r.PromoteToDue(r.PayoutDate.Add(-time.Second)))
	assert.True(t, r.PromoteToDue(r.PayoutDate))
	assert.Equal(t, ReturnStatusDue, r.Status)
	assert.False(t, r.PromoteToDue(r.PayoutDate), "already due")

	paymentID := uuid.New()
	require.NoError(t, r.MarkPaid(paymentID, time.Now()))
	assert.Equal(t, ReturnStatusPaid, r.Status)
	assert.Equal(t, &paymentID, r.PaymentID)
	assert.False(t, r.IsSettleable())

	err = r.MarkPaid(uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrReturnAlreadyPaid)
	assert.True(t, shared.IsConflict(err))
}

func TestROI_RecordPayout(t *testing.T) {
	_, roi := activeInvestmentWithROI(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	roi.RecordPayout(roi.PeriodReturnAmount, now)
	roi.RecordPayout(roi.PeriodReturnAmount, now)
	assert.True(t, roi.TotalPaid.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 2, roi.PayoutsMade)
	assert.Equal(t, now, *roi.LastPayoutDate)
	assert.Equal(t, 1, roi.RemainingPayouts())
}
