package ledger_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dueReturn moves the clock to the investment's next payout date, runs a
// tick and returns the return scheduled for that date
func (f *fixture) dueReturn(t *testing.T, investmentID uuid.UUID) *ledger.Return {
	t.Helper()
	inv := f.investment(t, investmentID)
	require.NotNil(t, inv.NextPayoutDate)
	f.clock.Set(*inv.NextPayoutDate)
	f.tick(t)
	ret, err := f.returns.FindByInvestmentAndDate(f.ctx, investmentID, *inv.NextPayoutDate)
	require.NoError(t, err)
	require.NotNil(t, ret)
	require.Equal(t, ledger.ReturnStatusDue, ret.Status)
	return ret
}

func (f *fixture) withdraw(userID string, investmentID uuid.UUID, ret *ledger.Return) (*appledger.WithdrawResult, error) {
	return f.settlement.Withdraw(f.ctx, appledger.WithdrawRequest{UserID: userID, InvestmentID: investmentID, ReturnID: ret.ID})
}

func countROIPayments(t *testing.T, f *fixture) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.PaymentModel{}).Where("type = ?", ledger.PaymentTypeROI).Count(&n).Error)
	return n
}

func TestSettlementService_Withdraw(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Gold", 12)
	f.onboard(t, "u1")
	invID := *f.invest(t, "u1", "Gold", "2000").InvestmentID
	ret := f.dueReturn(t, invID)
	settledAt := f.clock.Now()

	out, err := f.withdraw("u1", invID, ret)
	require.NoError(t, err)

	assert.True(t, dec("40").Equal(out.Amount))
	assert.Equal(t, "AED", out.Currency)
	assert.Equal(t, "bank", out.PayoutMethod)
	assert.Equal(t, "Emirates NBD", out.PayoutDetails["bank_name"])
	assert.Equal(t, "******5678", out.PayoutDetails["account_number"])
	assert.Equal(t, "active", out.InvestmentStatus)
	assert.Equal(t, 1, out.PayoutsMade)
	assert.Equal(t, 12, out.TotalPayouts)
	require.NotNil(t, out.NextPayoutDate)
	assert.True(t, settledAt.AddDate(0, 1, 0).Equal(*out.NextPayoutDate))

	stored, err := f.returns.FindByID(f.ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReturnStatusPaid, stored.Status)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, out.PaymentID, *stored.PaymentID)

	roi, err := f.rois.FindByInvestment(f.ctx, "u1", invID)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(roi.TotalPaid))
	assert.Equal(t, 1, roi.PayoutsMade)
	require.NotNil(t, roi.LastPayoutDate)
	assert.True(t, settledAt.Equal(*roi.LastPayoutDate))

	payment, err := f.payments.FindByReference(f.ctx, out.Reference)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, ledger.PaymentTypeROI, payment.Type)
	assert.Equal(t, ledger.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, ledger.PaymentMethodBank, payment.Method)
	assert.Equal(t, "ROI payout for Gold", payment.Description)

	notes := f.notifier.all()
	last := notes[len(notes)-1]
	assert.Equal(t, out.PaymentID, last.PaymentID)
	assert.Contains(t, last.PayoutDetails, "Bank transfer: Emirates NBD")
	assert.Equal(t, 1, f.events.count(ledger.EventTypeReturnSettled))

	t.Run("second withdrawal conflicts without side effects", func(t *testing.T) {
		_, err := f.withdraw("u1", invID, ret)
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
		assert.Equal(t, ledger.ReasonReturnAlreadyPaid, shared.ReasonOf(err))

		roi, err := f.rois.FindByInvestment(f.ctx, "u1", invID)
		require.NoError(t, err)
		assert.True(t, dec("40").Equal(roi.TotalPaid))
		assert.Equal(t, 1, f.investment(t, invID).PayoutsMade)
		assert.Equal(t, int64(1), countROIPayments(t, f))
	})
}

func TestSettlementService_ConcurrentWithdrawalsSettleOnce(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Gold", 12)
	f.onboard(t, "u1")
	invID := *f.invest(t, "u1", "Gold", "2000").InvestmentID
	ret := f.dueReturn(t, invID)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.withdraw("u1", invID, ret)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsConflict(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)

	roi, err := f.rois.FindByInvestment(f.ctx, "u1", invID)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(roi.TotalPaid))
	assert.Equal(t, 1, roi.PayoutsMade)
	assert.Equal(t, 1, f.investment(t, invID).PayoutsMade)
	assert.Equal(t, int64(1), countROIPayments(t, f))
}

func TestSettlementService_CompletesAfterFinalPayout(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Short", 3)
	f.onboard(t, "u1")
	invID := *f.invest(t, "u1", "Short", "1000").InvestmentID

	var last *appledger.WithdrawResult
	for i := 1; i <= 3; i++ {
		ret := f.dueReturn(t, invID)
		out, err := f.withdraw("u1", invID, ret)
		require.NoError(t, err, "payout %d", i)
		assert.Equal(t, i, out.PayoutsMade)
		last = out
	}

	assert.Equal(t, "completed", last.InvestmentStatus)
	assert.Nil(t, last.NextPayoutDate)

	inv := f.investment(t, invID)
	assert.Equal(t, ledger.InvestmentStatusCompleted, inv.Status)
	assert.Equal(t, 3, inv.PayoutsMade)
	assert.Nil(t, inv.NextPayoutDate)
	require.NotNil(t, inv.CompletedAt)
	assert.NoError(t, inv.CheckInvariants())

	roi, err := f.rois.FindByInvestment(f.ctx, "u1", invID)
	require.NoError(t, err)
	assert.True(t, dec("60").Equal(roi.TotalPaid))
	assert.Equal(t, 3, roi.PayoutsMade)
	assert.Equal(t, 0, roi.RemainingPayouts())
	assert.Equal(t, 1, f.events.count(ledger.EventTypeInvestmentCompleted))

	f.clock.Advance(365 * 24 * time.Hour)
	r := f.tick(t)
	assert.Equal(t, 0, r.Due)
	assert.Equal(t, int64(3), f.countRows(t, &models.ReturnModel{}))

	_, err = f.scheduler.SetPayout(f.ctx, appledger.SetPayoutRequest{InvestmentID: invID})
	require.Error(t, err)
	assert.True(t, shared.IsPrecondition(err))
}

func TestSettlementService_UsesRateFixedAtActivation(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Gold", 12)
	f.onboard(t, "u1")
	invID := *f.invest(t, "u1", "Gold", "2000").InvestmentID

	require.NoError(t, f.db.Model(&models.InvestmentPlanModel{}).
		Where("name = ?", "Gold").
		Update("monthly_rate", dec("5")).Error)

	first, err := f.withdraw("u1", invID, f.dueReturn(t, invID))
	require.NoError(t, err)
	second := f.dueReturn(t, invID)

	assert.True(t, dec("40").Equal(first.Amount))
	assert.True(t, dec("40").Equal(second.Amount))
}

func TestSettlementService_ReadsPayoutMethodAtSettlement(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Gold", 12)
	f.onboard(t, "u1")
	invID := *f.invest(t, "u1", "Gold", "2000").InvestmentID

	_, err := f.memberSvc.SetPayoutMethod(f.ctx, "u1", appledger.SetPayoutMethodRequest{
		Kind: "crypto", WalletAddress: "TXa1b2c3d4e5f6", CoinType: "usdt",
	})
	require.NoError(t, err)

	out, err := f.withdraw("u1", invID, f.dueReturn(t, invID))
	require.NoError(t, err)
	assert.Equal(t, "crypto", out.PayoutMethod)
	assert.Equal(t, "TXa1b2c3d4e5f6", out.PayoutDetails["wallet_address"])

	payment, err := f.payments.FindByReference(f.ctx, out.Reference)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentMethodCrypto, payment.Method)

	notes := f.notifier.all()
	assert.Equal(t, "USDT wallet **********e5f6", notes[len(notes)-1].PayoutDetails)
}

func TestSettlementService_OwnershipChecks(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Gold", 12)
	f.onboard(t, "u1")
	f.onboard(t, "u2")
	invID := *f.invest(t, "u1", "Gold", "2000").InvestmentID
	otherInvID := *f.invest(t, "u2", "Gold", "1000").InvestmentID
	ret := f.dueReturn(t, invID)

	t.Run("another member's return", func(t *testing.T) {
		_, err := f.withdraw("u2", invID, ret)
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
		assert.Equal(t, ledger.ReasonReturnNotFound, shared.ReasonOf(err))
	})

	t.Run("return of a different investment", func(t *testing.T) {
		_, err := f.withdraw("u1", otherInvID, ret)
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
		assert.Equal(t, ledger.ReasonReturnMismatch, shared.ReasonOf(err))
	})

	t.Run("unknown return", func(t *testing.T) {
		_, err := f.settlement.Withdraw(f.ctx, appledger.WithdrawRequest{UserID: "u1", InvestmentID: invID, ReturnID: uuid.New()})
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})

	stored, err := f.returns.FindByID(f.ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReturnStatusDue, stored.Status)
}

func TestSettlementService_FailedWithdrawalLeavesNoPartialWrites(t *testing.T) {
	f := newFixture(t)
	f.createPlan(t, "Single", 1)
	f.onboard(t, "u1")
	invID := *f.invest(t, "u1", "Single", "1000").InvestmentID
	ret := f.dueReturn(t, invID)

	// a surplus return written straight to storage, past the single payout the plan owes
	roi, err := f.rois.FindByInvestment(f.ctx, "u1", invID)
	require.NoError(t, err)
	surplus, err := ledger.NewScheduledReturn(f.investment(t, invID), roi, f.clock.Now().AddDate(0, 0, 5))
	require.NoError(t, err)
	_, created, err := f.returns.CreateIfAbsent(f.ctx, surplus)
	require.NoError(t, err)
	require.True(t, created)

	out, err := f.withdraw("u1", invID, ret)
	require.NoError(t, err)
	require.Equal(t, "completed", out.InvestmentStatus)

	paymentsBefore := countROIPayments(t, f)
	returnsBefore := f.countRows(t, &models.ReturnModel{})

	// the return and ROI rows are written before the investment refuses a second payout
	_, err = f.withdraw("u1", invID, surplus)
	require.Error(t, err)

	stored, err := f.returns.FindByID(f.ctx, surplus.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReturnStatusPending, stored.Status)
	assert.Nil(t, stored.PaidAt)
	assert.Nil(t, stored.PaymentID)

	roiAfter, err := f.rois.FindByInvestment(f.ctx, "u1", invID)
	require.NoError(t, err)
	assert.Equal(t, 1, roiAfter.PayoutsMade)
	assert.True(t, dec("20").Equal(roiAfter.TotalPaid))
	assert.Equal(t, roi.Version+1, roiAfter.Version)

	inv := f.investment(t, invID)
	assert.Equal(t, ledger.InvestmentStatusCompleted, inv.Status)
	assert.Equal(t, 1, inv.PayoutsMade)
	assert.NoError(t, inv.CheckInvariants())

	assert.Equal(t, paymentsBefore, countROIPayments(t, f))
	assert.Equal(t, returnsBefore, f.countRows(t, &models.ReturnModel{}))
}
