package ledger

import (
	"context"
	"fmt"

	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SettlementServiceConfig holds the optional collaborators of SettlementService
type SettlementServiceConfig struct {
	Notifier Notifier
	Events   shared.EventPublisher
	Metrics  Metrics
	Logger   *zap.Logger
	Clock    Clock
}

// SettlementService releases due returns. It is the only writer that marks
// a return paid and advances ROI and investment payout counters.
type SettlementService struct {
	scope    TransactionScope
	returns  ledger.ReturnRepository
	rois     ledger.ROIRepository
	invs     ledger.InvestmentRepository
	profiles ProfileStore
	manager  *InvestmentManager

	notifier Notifier
	events   shared.EventPublisher
	metrics  Metrics
	logger   *zap.Logger
	now      Clock
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	scope TransactionScope,
	returns ledger.ReturnRepository,
	rois ledger.ROIRepository,
	investments ledger.InvestmentRepository,
	profiles ProfileStore,
	manager *InvestmentManager,
	cfg SettlementServiceConfig,
) *SettlementService {
	s := &SettlementService{
		scope:    scope,
		returns:  returns,
		rois:     rois,
		invs:     investments,
		profiles: profiles,
		manager:  manager,
		notifier: cfg.Notifier,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Clock,
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
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

// Withdraw settles one return. The return, ROI, investment and the new roi
// payment are written in a single transaction; concurrent calls for the same
// return serialize on the return's status and the loser gets a Conflict.
// The payout destination is read from the member's profile at call time.
func (s *SettlementService) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "withdraw")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrUserID, req.UserID,
		telemetry.SpanAttrInvestmentID, req.InvestmentID.String(),
		telemetry.SpanAttrReturnID, req.ReturnID.String(),
	)

	var (
		res *WithdrawResult
		err error
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{"operation": "withdraw"}, func(ctx context.Context) {
		res, err = s.withdraw(ctx, req)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentRef, res.Reference,
		telemetry.SpanAttrAmount, res.Amount.String(),
	)
	return res, nil
}

func (s *SettlementService) withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error) {
	ret, err := s.returns.FindByID(ctx, req.ReturnID)
	if err != nil {
		return nil, fmt.Errorf("load return: %w", err)
	}
	if ret == nil || !ret.IsOwnedBy(req.UserID) {
		return nil, ledger.ErrReturnNotFound
	}
	if ret.InvestmentID != req.InvestmentID {
		return nil, shared.NewNotFoundError(ledger.ReasonReturnMismatch, "return does not belong to the investment")
	}
	if !ret.IsSettleable() {
		s.metrics.Settlement(OutcomeConflict, ret.Amount)
		return nil, ledger.ErrReturnAlreadyPaid
	}

	roi, err := s.rois.FindByInvestment(ctx, req.UserID, req.InvestmentID)
	if err != nil {
		return nil, fmt.Errorf("load ROI: %w", err)
	}
	if roi == nil {
		return nil, ledger.ErrROINotFound
	}
	inv, err := s.invs.FindByID(ctx, req.InvestmentID)
	if err != nil {
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if inv == nil || !inv.IsOwnedBy(req.UserID) {
		return nil, ledger.ErrInvestmentNotFound
	}

	method, err := s.profiles.GetPayoutMethod(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, ledger.ErrPayoutMethodUnset
	}

	now := s.now()
	description := "ROI payout for " + inv.PlanName
	payment, err := ledger.NewSettlementPayment(req.UserID, inv.ID, ret.Amount, ret.Currency, method.Kind(), description, now)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		ok, err := repos.Returns().MarkPaid(ctx, ret.ID, payment.ID, now)
		if err != nil {
			return fmt.Errorf("mark return paid: %w", err)
		}
		if !ok {
			return ledger.ErrReturnAlreadyPaid
		}
		if err := ret.MarkPaid(payment.ID, now); err != nil {
			return err
		}
		if err := repos.ROIs().ApplyPayout(ctx, roi.ID, ret.Amount, now); err != nil {
			return fmt.Errorf("apply ROI payout: %w", err)
		}
		roi.RecordPayout(ret.Amount, now)
		inv, err = s.manager.advanceIn(ctx, repos, inv.ID, now)
		if err != nil {
			return err
		}
		if err := repos.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("record payout payment: %w", err)
		}
		return nil
	})
	if err != nil {
		if shared.IsConflict(err) {
			s.metrics.Settlement(OutcomeConflict, ret.Amount)
		} else {
			s.metrics.Settlement(OutcomeError, ret.Amount)
		}
		return nil, err
	}

	s.metrics.Settlement(OutcomeSuccess, ret.Amount)
	s.logger.Info("Return settled",
		zap.String("user_id", req.UserID),
		zap.String("investment_id", inv.ID.String()),
		zap.String("return_id", ret.ID.String()),
		zap.String("payment_reference", payment.Reference),
		zap.String("amount", ret.Amount.String()),
		zap.String("payout_method", method.Kind().String()),
		zap.Int("payouts_made", inv.PayoutsMade),
		zap.Int("total_payouts", inv.TotalPayouts))

	payment.AddDomainEvent(ledger.NewPaymentConfirmedEvent(payment))
	publishEvents(ctx, s.events, s.logger, ret, inv, payment)
	if err := s.notifier.Notify(ctx, Notification{
		PaymentID:     payment.ID,
		Reference:     payment.Reference,
		Amount:        payment.Amount,
		Currency:      string(payment.Currency),
		UserID:        payment.UserID,
		Description:   description,
		PayoutDetails: ledger.DescribePayout(method),
	}); err != nil {
		s.logger.Warn("Payout notification failed",
			zap.String("payment_id", payment.ID.String()),
			zap.String("user_id", payment.UserID),
			zap.Error(err))
	}

	return &WithdrawResult{
		PaymentID:        payment.ID,
		Reference:        payment.Reference,
		ReturnID:         ret.ID,
		Amount:           payment.Amount,
		Currency:         string(payment.Currency),
		PayoutMethod:     method.Kind().String(),
		PayoutDetails:    ledger.PayoutDetails(method),
		NextPayoutDate:   inv.NextPayoutDate,
		InvestmentStatus: inv.Status.String(),
		PayoutsMade:      inv.PayoutsMade,
		TotalPayouts:     inv.TotalPayouts,
	}, nil
}
