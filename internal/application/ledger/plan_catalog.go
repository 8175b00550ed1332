package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// PlanCatalog serves investment plan terms
type PlanCatalog struct {
	plans  ledger.PlanRepository
	logger *zap.Logger
}

// NewPlanCatalog creates a new PlanCatalog
func NewPlanCatalog(plans ledger.PlanRepository, logger *zap.Logger) *PlanCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanCatalog{plans: plans, logger: logger}
}

// GetActivePlan returns an active plan by ID
func (c *PlanCatalog) GetActivePlan(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := activePlan(ctx, c.plans, id)
	if err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// ListActivePlans returns all active plans ordered by minimum amount
func (c *PlanCatalog) ListActivePlans(ctx context.Context) ([]PlanResponse, error) {
	plans, err := c.plans.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}
	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = ToPlanResponse(&plans[i])
	}
	return out, nil
}

// CreatePlan validates and stores a new plan. Plan names are unique.
func (c *PlanCatalog) CreatePlan(ctx context.Context, req CreatePlanRequest) (*PlanResponse, error) {
	cadence := ledger.CadenceMonthly
	if req.Cadence != "" {
		parsed, err := ledger.ParseCadence(req.Cadence)
		if err != nil {
			return nil, err
		}
		cadence = parsed
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	plan, err := ledger.NewInvestmentPlan(ledger.PlanTerms{
		Name:              req.Name,
		Description:       req.Description,
		MinAmount:         req.MinAmount,
		MaxAmount:         req.MaxAmount,
		MonthlyRate:       req.MonthlyRate,
		AnnualRate:        req.AnnualRate,
		DurationInPeriods: req.DurationInPeriods,
		Cadence:           cadence,
		Active:            active,
	})
	if err != nil {
		return nil, err
	}

	existing, err := c.plans.FindByName(ctx, plan.Name)
	if err != nil {
		return nil, fmt.Errorf("check plan name: %w", err)
	}
	if existing != nil {
		return nil, shared.NewConflictError(ledger.ReasonPlanNameTaken, fmt.Sprintf("plan %q already exists", plan.Name))
	}

	if err := c.plans.Save(ctx, plan); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	c.logger.Info("Investment plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name),
		zap.String("monthly_rate", plan.MonthlyRate.String()),
		zap.String("annual_rate", plan.AnnualRate.String()))

	resp := ToPlanResponse(plan)
	return &resp, nil
}

// activePlan loads a plan and rejects unknown or inactive plans as NotFound
func activePlan(ctx context.Context, plans ledger.PlanRepository, id uuid.UUID) (*ledger.InvestmentPlan, error) {
	plan, err := plans.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan == nil {
		return nil, ledger.ErrPlanNotFound
	}
	if !plan.Active {
		return nil, shared.NewNotFoundError(ledger.ReasonPlanInactive, "investment plan is not available")
	}
	return plan, nil
}
