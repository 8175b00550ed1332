package integration

import (
	"errors"
	"sync"
	"testing"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerFlow_InvestTickWithdraw(t *testing.T) {
	a := newLedgerApp(t)
	a.createPlan(t, "Gold", 2)

	reg := a.onboard(t, "u1")
	assert.Equal(t, "PRB00001", reg.MemberNumber)

	invID := a.invest(t, "u1", "Gold", "2000")
	inv := a.investment(t, invID)
	assert.Equal(t, ledger.InvestmentStatusActive, inv.Status)
	assert.Equal(t, int64(1), a.tdb.Count("returns", "investment_id = ? AND status = ?", invID, string(ledger.ReturnStatusPending)))

	first := a.dueReturn(t, invID)
	assert.True(t, dec("40").Equal(first.Amount))

	out, err := a.settlement.Withdraw(a.ctx, appledger.WithdrawRequest{UserID: "u1", InvestmentID: invID, ReturnID: first.ID})
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(out.Amount))
	assert.Equal(t, "active", out.InvestmentStatus)
	assert.Equal(t, 1, out.PayoutsMade)

	second := a.dueReturn(t, invID)
	out, err = a.settlement.Withdraw(a.ctx, appledger.WithdrawRequest{UserID: "u1", InvestmentID: invID, ReturnID: second.ID})
	require.NoError(t, err)
	assert.Equal(t, "completed", out.InvestmentStatus)
	assert.Nil(t, out.NextPayoutDate)

	assert.Equal(t, int64(2), a.tdb.Count("returns", "investment_id = ? AND status = ?", invID, string(ledger.ReturnStatusPaid)))
	assert.Equal(t, int64(2), a.tdb.Count("payments", "user_id = ? AND type = ?", "u1", string(ledger.PaymentTypeROI)))
	assert.Equal(t, int64(2), a.tdb.Count("roi_records", "investment_id = ?", invID))

	assert.Equal(t, 2, a.events.CountOf(ledger.EventTypeReturnSettled))
	assert.Equal(t, 1, a.events.CountOf(ledger.EventTypeInvestmentCompleted))
	assert.NotEmpty(t, a.events.ForMember("u1"))

	// a completed investment gets no further returns
	_, err = a.scheduler.RunTick(a.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.tdb.Count("returns", "investment_id = ?", invID))
}

func TestLedgerFlow_ConcurrentWithdrawSettlesOnce(t *testing.T) {
	a := newLedgerApp(t)
	a.createPlan(t, "Gold", 12)
	a.onboard(t, "u1")
	invID := a.invest(t, "u1", "Gold", "2000")
	ret := a.dueReturn(t, invID)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.settlement.Withdraw(a.ctx, appledger.WithdrawRequest{UserID: "u1", InvestmentID: invID, ReturnID: ret.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsConflict(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, int64(1), a.tdb.Count("payments", "type = ?", string(ledger.PaymentTypeROI)))
	assert.Equal(t, int64(1), a.tdb.Count("roi_records", "investment_id = ?", invID))
	assert.Equal(t, 1, a.investment(t, invID).PayoutsMade)
}

func TestLedgerFlow_ConcurrentPlanSelectionKeepsOnePending(t *testing.T) {
	a := newLedgerApp(t)
	plan := a.createPlan(t, "Gold", 12)
	a.onboard(t, "u1")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		others    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(amount int) {
			defer wg.Done()
			_, err := a.manager.SelectPlan(a.ctx, appledger.SelectPlanRequest{
				UserID: "u1", PlanID: plan.ID, Amount: dec("2000").Add(dec("100").Mul(decimal.NewFromInt(int64(amount)))),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, shared.ErrConcurrencyConflict), errors.Is(err, ledger.ErrPendingInvestmentExists):
				// lost an update race against another selection
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.GreaterOrEqual(t, successes, 1)
	assert.Equal(t, int64(1), a.tdb.Count("investments", "user_id = ? AND status = ?", "u1", string(ledger.InvestmentStatusPending)))
	assert.Equal(t, int64(1), a.tdb.Count("investments", "user_id = ?", "u1"))
}

func TestLedgerFlow_RepeatedTicksCreateOneReturnPerDate(t *testing.T) {
	a := newLedgerApp(t)
	a.createPlan(t, "Gold", 12)
	a.onboard(t, "u1")
	invID := a.invest(t, "u1", "Gold", "2000")

	inv := a.investment(t, invID)
	a.clock.Set(*inv.NextPayoutDate)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.scheduler.RunTick(a.ctx)
		}()
	}
	wg.Wait()
	_, err := a.scheduler.RunTick(a.ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.tdb.Count("returns", "investment_id = ?", invID))
	assert.Equal(t, int64(1), a.tdb.Count("returns", "investment_id = ? AND status = ?", invID, string(ledger.ReturnStatusDue)))
}

func TestLedgerFlow_DuplicateGatewayCallback(t *testing.T) {
	a := newLedgerApp(t)
	a.createPlan(t, "Gold", 12)
	a.onboard(t, "u1")
	p := a.openInvestment(t, "u1", "Gold", "2000")

	cb := appledger.GatewayCallback{
		Reference:    p.Reference,
		Status:       "success",
		Amount:       p.Amount,
		Currency:     p.Currency,
		GatewayTxnID: "cs_test_1",
	}
	first, err := a.ledger.HandleGatewayCallback(a.ctx, cb)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.False(t, first.AlreadyConfirmed)
	require.NotNil(t, first.InvestmentID)

	second, err := a.ledger.HandleGatewayCallback(a.ctx, cb)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.True(t, second.AlreadyConfirmed)

	assert.Equal(t, int64(1), a.tdb.Count("returns", "investment_id = ?", *first.InvestmentID))
	assert.Equal(t, 1, a.events.CountOf(ledger.EventTypeInvestmentActivated))
}

func TestLedgerFlow_KycGate(t *testing.T) {
	a := newLedgerApp(t)
	plan := a.createPlan(t, "Gold", 12)

	_, err := a.members.Register(a.ctx, appledger.RegisterMemberRequest{UserID: "u2", Name: "Pending", Email: "u2@example.com"})
	require.NoError(t, err)
	p, err := a.ledger.OpenPending(a.ctx, appledger.OpenPaymentRequest{UserID: "u2", Type: "registration", Method: "cash"})
	require.NoError(t, err)
	_, err = a.ledger.Confirm(a.ctx, p.Reference)
	require.NoError(t, err)

	_, err = a.manager.SelectPlan(a.ctx, appledger.SelectPlanRequest{UserID: "u2", PlanID: plan.ID, Amount: dec("2000")})
	require.Error(t, err)
	assert.True(t, shared.IsPrecondition(err))
	assert.Equal(t, ledger.ReasonKycNotApproved, shared.ReasonOf(err))
	assert.Equal(t, int64(0), a.tdb.Count("investments", ""))
}
