package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/cache"
	"github.com/primebond/ledger/internal/infrastructure/persistence"
	"github.com/primebond/ledger/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testStart = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = shared.NormalizeTime(t)
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []appledger.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg appledger.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) all() []appledger.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]appledger.Notification(nil), n.sent...)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, req appledger.CheckoutRequest) (*appledger.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if s, ok := args.Get(0).(*appledger.CheckoutSession); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// fixture wires every ledger service to one in-memory sqlite database
type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *testClock
	events   *recordingPublisher
	notifier *recordingNotifier
	locker   *cache.InMemoryTickLock

	plans       *persistence.GormPlanRepository
	investments *persistence.GormInvestmentRepository
	payments    *persistence.GormPaymentRepository
	rois        *persistence.GormROIRepository
	returns     *persistence.GormReturnRepository
	members     *persistence.GormMemberRepository

	catalog    *appledger.PlanCatalog
	manager    *appledger.InvestmentManager
	ledger     *appledger.PaymentLedger
	scheduler  *appledger.PayoutScheduler
	settlement *appledger.SettlementService
	queries    *appledger.QueryService
	memberSvc  *appledger.MemberService
}

func newFixture(t *testing.T, opts ...func(*appledger.PaymentLedgerConfig)) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every goroutine sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	f := &fixture{
		ctx:         context.Background(),
		db:          db,
		clock:       &testClock{now: testStart},
		events:      &recordingPublisher{},
		notifier:    &recordingNotifier{},
		locker:      cache.NewInMemoryTickLock(),
		plans:       persistence.NewGormPlanRepository(db),
		investments: persistence.NewGormInvestmentRepository(db),
		payments:    persistence.NewGormPaymentRepository(db),
		rois:        persistence.NewGormROIRepository(db),
		returns:     persistence.NewGormReturnRepository(db),
		members:     persistence.NewGormMemberRepository(db),
	}

	idempotency := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	scope := persistence.NewGormTransactionScope(db)
	profiles := persistence.NewGormProfileStore(db)
	settings := appledger.DefaultSettings()

	f.catalog = appledger.NewPlanCatalog(f.plans, nil)
	f.manager = appledger.NewInvestmentManager(scope, f.plans, profiles, appledger.InvestmentManagerConfig{
		Events: f.events,
		Clock:  f.clock.Now,
	})
	cfg := appledger.PaymentLedgerConfig{
		Settings:    settings,
		Notifier:    f.notifier,
		Idempotency: idempotency,
		Events:      f.events,
		Clock:       f.clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.ledger = appledger.NewPaymentLedger(scope, f.payments, f.investments, profiles, f.manager, cfg)
	f.scheduler = appledger.NewPayoutScheduler(scope, f.investments, f.returns, appledger.PayoutSchedulerConfig{
		Locker: f.locker,
		Events: f.events,
		Clock:  f.clock.Now,
	})
	f.settlement = appledger.NewSettlementService(scope, f.returns, f.rois, f.investments, profiles, f.manager, appledger.SettlementServiceConfig{
		Notifier: f.notifier,
		Events:   f.events,
		Clock:    f.clock.Now,
	})
	f.queries = appledger.NewQueryService(f.investments, f.payments, f.rois, f.returns, settings, nil)
	f.memberSvc = appledger.NewMemberService(f.members, nil)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// createPlan adds an active monthly plan with a 2% monthly rate
func (f *fixture) createPlan(t *testing.T, name string, durationMonths int) *appledger.PlanResponse {
	t.Helper()
	max := dec("100000")
	plan, err := f.catalog.CreatePlan(f.ctx, appledger.CreatePlanRequest{
		Name:              name,
		MinAmount:         dec("1000"),
		MaxAmount:         &max,
		MonthlyRate:       dec("2"),
		AnnualRate:        dec("24"),
		DurationInPeriods: durationMonths,
	})
	require.NoError(t, err)
	return plan
}

func bankPayout() appledger.SetPayoutMethodRequest {
	return appledger.SetPayoutMethodRequest{
		Kind:          "bank",
		AccountHolder: "Amal Haddad",
		AccountNumber: "0012345678",
		BankName:      "Emirates NBD",
		IBAN:          "AE070331234567890123456",
	}
}

// registerMember creates a KYC-approved member with a bank payout method
// and an unpaid registration fee
func (f *fixture) registerMember(t *testing.T, userID string) {
	t.Helper()
	_, err := f.memberSvc.Register(f.ctx, appledger.RegisterMemberRequest{
		UserID: userID,
		Name:   "Member " + userID,
		Email:  userID + "@example.com",
	})
	require.NoError(t, err)
	_, err = f.memberSvc.SetKycStatus(f.ctx, userID, ledger.KycStatusApproved)
	require.NoError(t, err)
	_, err = f.memberSvc.SetPayoutMethod(f.ctx, userID, bankPayout())
	require.NoError(t, err)
}

// onboard registers a member and confirms the registration fee
func (f *fixture) onboard(t *testing.T, userID string) *appledger.ConfirmResult {
	t.Helper()
	f.registerMember(t, userID)
	p, err := f.ledger.OpenPending(f.ctx, appledger.OpenPaymentRequest{
		UserID: userID,
		Type:   "registration",
		Method: "bank",
	})
	require.NoError(t, err)
	res, err := f.ledger.Confirm(f.ctx, p.Reference)
	require.NoError(t, err)
	return res
}

// invest selects the named plan and confirms the investment payment by bank
func (f *fixture) invest(t *testing.T, userID, planName, amount string) *appledger.ConfirmResult {
	t.Helper()
	p := f.openInvestment(t, userID, planName, amount)
	res, err := f.ledger.Confirm(f.ctx, p.Reference)
	require.NoError(t, err)
	return res
}

func (f *fixture) openInvestment(t *testing.T, userID, planName, amount string) *appledger.PaymentResponse {
	t.Helper()
	plan, err := f.plans.FindByName(f.ctx, planName)
	require.NoError(t, err)
	require.NotNil(t, plan)
	_, err = f.manager.SelectPlan(f.ctx, appledger.SelectPlanRequest{
		UserID: userID,
		PlanID: plan.ID,
		Amount: dec(amount),
	})
	require.NoError(t, err)
	p, err := f.ledger.OpenPending(f.ctx, appledger.OpenPaymentRequest{
		UserID: userID,
		Type:   "investment",
		Method: "bank",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) investment(t *testing.T, id uuid.UUID) *ledger.Investment {
	t.Helper()
	inv, err := f.investments.FindByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, inv, "investment %s", id)
	return inv
}

func (f *fixture) returnsOf(t *testing.T, userID string) []ledger.Return {
	t.Helper()
	items, _, err := f.returns.FindAll(f.ctx, ledger.ReturnFilter{
		Filter: shared.Filter{Page: 1, PageSize: 100, OrderBy: "payout_date", OrderDir: "asc"},
		UserID: userID,
	})
	require.NoError(t, err)
	return items
}

func (f *fixture) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
