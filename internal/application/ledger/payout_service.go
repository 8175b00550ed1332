package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TickLockKey is the lock held while a scheduler tick runs
const TickLockKey = "ledger:payout-scheduler:tick"

// PayoutSchedulerConfig holds the optional collaborators of PayoutScheduler
type PayoutSchedulerConfig struct {
	// Locker makes ticks mutually exclusive across processes. Without it
	// overlapping ticks still cannot duplicate returns.
	Locker  TickLocker
	LockTTL time.Duration
	// BatchSize caps how many due investments one tick processes. Default: 1000
	BatchSize int
	Events    shared.EventPublisher
	Metrics   Metrics
	Logger    *zap.Logger
	Clock     Clock
}

// PayoutScheduler creates the next return for due investments and promotes
// pending returns whose payout date has arrived.
type PayoutScheduler struct {
	scope       TransactionScope
	investments ledger.InvestmentRepository
	returns     ledger.ReturnRepository
	locker      TickLocker
	lockTTL     time.Duration
	batchSize   int
	events      shared.EventPublisher
	metrics     Metrics
	logger      *zap.Logger
	now         Clock
}

// NewPayoutScheduler creates a new PayoutScheduler
func NewPayoutScheduler(scope TransactionScope, investments ledger.InvestmentRepository, returns ledger.ReturnRepository, cfg PayoutSchedulerConfig) *PayoutScheduler {
	s := &PayoutScheduler{
		scope:       scope,
		investments: investments,
		returns:     returns,
		locker:      cfg.Locker,
		lockTTL:     cfg.LockTTL,
		batchSize:   cfg.BatchSize,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Clock,
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Minute
	}
	if s.batchSize <= 0 {
		s.batchSize = 1000
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = shared.Now
	}
	return s
}

// RunTick runs one scheduler tick: create the next return for every due
// investment, then promote pending returns to due. Creating first lets a
// return whose date has already arrived become due in the same tick.
func (s *PayoutScheduler) RunTick(ctx context.Context) (*TickResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", "tick")
	defer span.End()

	var (
		res *TickResult
		err error
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{"operation": "scheduler_tick"}, func(ctx context.Context) {
		res, err = s.runTick(ctx)
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	if res != nil {
		telemetry.SetAttributes(span,
			"scheduler.due", res.Due,
			"scheduler.created", res.Created,
			"scheduler.promoted", res.Promoted,
			"scheduler.skipped", res.Skipped,
		)
	}
	return res, err
}

func (s *PayoutScheduler) runTick(ctx context.Context) (*TickResult, error) {
	now := s.now()
	result := &TickResult{StartedAt: now}

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, TickLockKey, s.lockTTL)
		if err != nil {
			s.metrics.SchedulerTick(0, 0, 0, OutcomeError)
			return nil, fmt.Errorf("acquire tick lock: %w", err)
		}
		if !ok {
			s.logger.Info("Scheduler tick skipped, another instance holds the lock")
			result.Skipped = true
			s.metrics.SchedulerTick(0, 0, 0, OutcomeSkipped)
			return result, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release tick lock", zap.Error(err))
			}
		}()
	}

	due, created, failed, err := s.createNextReturns(ctx, now)
	result.Due = due
	result.Created = created
	result.Failed = failed
	if err != nil {
		result.Duration = time.Since(now)
		s.metrics.SchedulerTick(result.Duration, created, 0, OutcomeError)
		return result, err
	}

	promoted, err := s.PromotePendingToDue(ctx, now)
	result.Promoted = promoted
	result.Duration = time.Since(now)
	if err != nil {
		s.metrics.SchedulerTick(result.Duration, created, promoted, OutcomeError)
		return result, err
	}

	outcome := OutcomeSuccess
	if failed > 0 {
		outcome = OutcomeFailed
	}
	s.metrics.SchedulerTick(result.Duration, created, promoted, outcome)
	s.logger.Info("Scheduler tick completed",
		zap.Int("due_investments", due),
		zap.Int64("returns_created", created),
		zap.Int64("returns_promoted", promoted),
		zap.Int("failed", failed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// createNextReturns runs CreateNextReturnIfNeeded for every active
// investment whose next payout date is at or before now. A failure on one
// investment is logged and does not stop the others.
func (s *PayoutScheduler) createNextReturns(ctx context.Context, now time.Time) (int, int64, int, error) {
	due, err := s.investments.FindDueForPayout(ctx, now, s.batchSize)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("find due investments: %w", err)
	}

	var created int64
	failed := 0
	for i := range due {
		inv := &due[i]
		_, ok, err := s.CreateNextReturnIfNeeded(ctx, inv)
		if err != nil {
			failed++
			s.logger.Error("Failed to create next return",
				zap.String("investment_id", inv.ID.String()),
				zap.String("user_id", inv.UserID),
				zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	return len(due), created, failed, nil
}

// CreateNextReturnIfNeeded finds or creates the return keyed by
// (investment, nextPayoutDate). It never touches the investment's payout
// counters or next payout date.
func (s *PayoutScheduler) CreateNextReturnIfNeeded(ctx context.Context, inv *ledger.Investment) (*ledger.Return, bool, error) {
	if inv == nil || !inv.IsDueForPayout(s.now()) {
		return nil, false, nil
	}
	var (
		ret     *ledger.Return
		created bool
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Investments().FindByIDForUpdate(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("load investment: %w", err)
		}
		if locked == nil {
			return ledger.ErrInvestmentNotFound
		}
		if !locked.IsDueForPayout(s.now()) {
			return nil
		}
		roi, err := repos.ROIs().FindByInvestment(ctx, locked.UserID, locked.ID)
		if err != nil {
			return fmt.Errorf("load ROI: %w", err)
		}
		if roi == nil {
			return ledger.ErrROINotFound
		}
		ret, created, err = scheduleReturn(ctx, repos, locked, roi, *locked.NextPayoutDate)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("Return scheduled",
			zap.String("investment_id", inv.ID.String()),
			zap.String("return_id", ret.ID.String()),
			zap.Time("payout_date", ret.PayoutDate),
			zap.String("amount", ret.Amount.String()))
		publishEvents(ctx, s.events, s.logger, ret)
	}
	return ret, created, nil
}

// PromotePendingToDue moves every pending return with payoutDate <= now to due
func (s *PayoutScheduler) PromotePendingToDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.returns.PromoteDue(ctx, shared.NormalizeTime(now))
	if err != nil {
		return 0, fmt.Errorf("promote due returns: %w", err)
	}
	return n, nil
}

// SetPayout schedules a return manually. The payout date defaults to the
// investment's next payout date; an existing return for the same date is
// returned unchanged.
func (s *PayoutScheduler) SetPayout(ctx context.Context, req SetPayoutRequest) (*SetPayoutResult, error) {
	var (
		ret     *ledger.Return
		created bool
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Investments().FindByIDForUpdate(ctx, req.InvestmentID)
		if err != nil {
			return fmt.Errorf("load investment: %w", err)
		}
		if inv == nil {
			return ledger.ErrInvestmentNotFound
		}
		if inv.Status != ledger.InvestmentStatusActive {
			return shared.NewPreconditionError(ledger.ReasonInvestmentNotActive,
				fmt.Sprintf("investment is %s, returns can only be scheduled for active investments", inv.Status))
		}
		payoutDate := inv.NextPayoutDate
		if req.PayoutDate != nil {
			payoutDate = req.PayoutDate
		}
		if payoutDate == nil {
			return shared.NewValidationError(ledger.ReasonInvestmentNotActive, "investment has no next payout date")
		}
		roi, err := repos.ROIs().FindByInvestment(ctx, inv.UserID, inv.ID)
		if err != nil {
			return fmt.Errorf("load ROI: %w", err)
		}
		if roi == nil {
			return ledger.ErrROINotFound
		}
		ret, created, err = scheduleReturn(ctx, repos, inv, roi, *payoutDate)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		publishEvents(ctx, s.events, s.logger, ret)
	}
	s.logger.Info("Manual payout scheduled",
		zap.String("investment_id", req.InvestmentID.String()),
		zap.String("return_id", ret.ID.String()),
		zap.Bool("created", created))
	return &SetPayoutResult{Return: ToReturnResponse(ret), Created: created}, nil
}

// scheduleReturn is the find-or-create primitive shared by the scheduler
// and payment confirmation. The (investment, payoutDate) unique key makes
// it safe under overlapping callers. Callers hold the investment row lock,
// so paid plus unpaid returns never exceed the investment's total payouts.
func scheduleReturn(ctx context.Context, repos TransactionalRepositories, inv *ledger.Investment, roi *ledger.ROI, payoutDate time.Time) (*ledger.Return, bool, error) {
	existing, err := repos.Returns().FindByInvestmentAndDate(ctx, inv.ID, shared.NormalizeTime(payoutDate))
	if err != nil {
		return nil, false, fmt.Errorf("load return: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}
	unpaid, err := repos.Returns().CountUnpaid(ctx, inv.ID)
	if err != nil {
		return nil, false, fmt.Errorf("count unpaid returns: %w", err)
	}
	if int64(inv.PayoutsMade)+unpaid >= int64(inv.TotalPayouts) {
		return nil, false, ledger.ErrPayoutsFullyScheduled
	}
	candidate, err := ledger.NewScheduledReturn(inv, roi, payoutDate)
	if err != nil {
		return nil, false, err
	}
	stored, created, err := repos.Returns().CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("create return: %w", err)
	}
	if !created {
		return stored, false, nil
	}
	return candidate, true, nil
}

// returnIDPtr is a small helper for optional IDs in results
func returnIDPtr(r *ledger.Return) *uuid.UUID {
	if r == nil {
		return nil
	}
	id := r.ID
	return &id
}

