package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// InvestmentManagerConfig holds the optional collaborators of InvestmentManager
type InvestmentManagerConfig struct {
	Events shared.EventPublisher
	Logger *zap.Logger
	Clock  Clock
}

// InvestmentManager owns investment state transitions and plan-selection
// preconditions.
type InvestmentManager struct {
	scope    TransactionScope
	plans    ledger.PlanRepository
	profiles ProfileStore
	events   shared.EventPublisher
	logger   *zap.Logger
	now      Clock
}

// NewInvestmentManager creates a new InvestmentManager
func NewInvestmentManager(scope TransactionScope, plans ledger.PlanRepository, profiles ProfileStore, cfg InvestmentManagerConfig) *InvestmentManager {
	m := &InvestmentManager{
		scope:    scope,
		plans:    plans,
		profiles: profiles,
		events:   cfg.Events,
		logger:   cfg.Logger,
		now:      cfg.Clock,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = shared.Now
	}
	return m
}

// SelectPlan records the member's plan choice as a pending investment. A
// member with a pending investment has it updated in place, so repeated
// selections before payment never create a second row.
func (m *InvestmentManager) SelectPlan(ctx context.Context, req SelectPlanRequest) (*InvestmentResponse, error) {
	if err := m.checkPreconditions(ctx, req.UserID); err != nil {
		return nil, err
	}

	plan, err := activePlan(ctx, m.plans, req.PlanID)
	if err != nil {
		return nil, err
	}
	cadence := plan.Cadence
	if req.Cadence != "" {
		if cadence, err = ledger.ParseCadence(req.Cadence); err != nil {
			return nil, err
		}
	}
	if err := plan.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	var inv *ledger.Investment
	selectTx := func(repos TransactionalRepositories) error {
		active, err := repos.Investments().ExistsActiveForUser(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("check active investment: %w", err)
		}
		if active {
			return ledger.ErrActiveInvestmentExists
		}
		paid, err := repos.Payments().ExistsSuccessful(ctx, req.UserID, ledger.PaymentTypeInvestment)
		if err != nil {
			return fmt.Errorf("check investment payment: %w", err)
		}
		if paid {
			return ledger.ErrInvestmentAlreadyPaid
		}

		pending, err := repos.Investments().FindPendingByUser(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("load pending investment: %w", err)
		}
		if pending != nil {
			if err := pending.Reselect(plan, req.Amount, cadence); err != nil {
				return err
			}
			inv = pending
		} else {
			created, err := ledger.NewPendingInvestment(req.UserID, plan, req.Amount, cadence)
			if err != nil {
				return err
			}
			inv = created
		}
		return repos.Investments().Save(ctx, inv)
	}
	err = m.scope.Execute(ctx, selectTx)
	if errors.Is(err, ledger.ErrPendingInvestmentExists) {
		// a concurrent selection inserted the pending row first; update it
		m.logger.Debug("Pending investment created concurrently, retrying selection",
			zap.String("user_id", req.UserID))
		err = m.scope.Execute(ctx, selectTx)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info("Investment plan selected",
		zap.String("user_id", req.UserID),
		zap.String("investment_id", inv.ID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("amount", inv.Amount.String()),
		zap.String("cadence", inv.Cadence.String()))
	publishEvents(ctx, m.events, m.logger, inv)

	resp := ToInvestmentResponse(inv)
	return &resp, nil
}

func (m *InvestmentManager) checkPreconditions(ctx context.Context, userID string) error {
	if _, err := m.profiles.GetUser(ctx, userID); err != nil {
		return err
	}
	registered, err := m.profiles.HasSuccessfulRegistrationPayment(ctx, userID)
	if err != nil {
		return err
	}
	if !registered {
		return ledger.ErrRegistrationUnpaid
	}
	approved, err := m.profiles.IsKycApproved(ctx, userID)
	if err != nil {
		return err
	}
	if !approved {
		return ledger.ErrKycNotApproved
	}
	method, err := m.profiles.GetPayoutMethod(ctx, userID)
	if err != nil {
		return err
	}
	if method == nil {
		return ledger.ErrPayoutMethodUnset
	}
	return nil
}

// Activate moves a pending investment to active in its own transaction
func (m *InvestmentManager) Activate(ctx context.Context, id uuid.UUID) (*InvestmentResponse, error) {
	var inv *ledger.Investment
	err := m.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = m.activateIn(ctx, repos, id, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, m.events, m.logger, inv)
	resp := ToInvestmentResponse(inv)
	return &resp, nil
}

// AdvanceAfterSettlement records one settled payout in its own transaction
func (m *InvestmentManager) AdvanceAfterSettlement(ctx context.Context, id uuid.UUID) (*InvestmentResponse, error) {
	var inv *ledger.Investment
	err := m.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = m.advanceIn(ctx, repos, id, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, m.events, m.logger, inv)
	resp := ToInvestmentResponse(inv)
	return &resp, nil
}

// Cancel abandons the member's pending investment
func (m *InvestmentManager) Cancel(ctx context.Context, userID string, id uuid.UUID) (*InvestmentResponse, error) {
	var inv *ledger.Investment
	err := m.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Investments().FindByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load investment: %w", err)
		}
		if inv == nil || !inv.IsOwnedBy(userID) {
			return ledger.ErrInvestmentNotFound
		}
		if err := inv.Cancel(m.now()); err != nil {
			return err
		}
		return repos.Investments().Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Investment cancelled",
		zap.String("user_id", userID),
		zap.String("investment_id", id.String()))
	resp := ToInvestmentResponse(inv)
	return &resp, nil
}

// activateIn activates the investment using the transaction's repositories
func (m *InvestmentManager) activateIn(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, now time.Time) (*ledger.Investment, error) {
	inv, err := repos.Investments().FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if inv == nil {
		return nil, ledger.ErrInvestmentNotFound
	}
	if err := inv.Activate(now); err != nil {
		return nil, err
	}
	if err := repos.Investments().Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("save investment: %w", err)
	}
	return inv, nil
}

// advanceIn applies one settled payout using the transaction's repositories
func (m *InvestmentManager) advanceIn(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, now time.Time) (*ledger.Investment, error) {
	inv, err := repos.Investments().FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if inv == nil {
		return nil, ledger.ErrInvestmentNotFound
	}
	if err := inv.AdvanceAfterSettlement(now); err != nil {
		return nil, err
	}
	if err := repos.Investments().Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("save investment: %w", err)
	}
	return inv, nil
}
