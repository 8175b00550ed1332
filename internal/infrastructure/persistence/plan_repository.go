package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPlanRepository implements ledger.PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID finds a plan by ID
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.InvestmentPlan, error) {
	var model models.InvestmentPlanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds a plan by its unique name
func (r *GormPlanRepository) FindByName(ctx context.Context, name string) (*ledger.InvestmentPlan, error) {
	var model models.InvestmentPlanModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns active plans ordered by minimum amount
func (r *GormPlanRepository) FindActive(ctx context.Context) ([]ledger.InvestmentPlan, error) {
	var planModels []models.InvestmentPlanModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("min_amount ASC, name ASC").
		Find(&planModels).Error; err != nil {
		return nil, err
	}
	plans := make([]ledger.InvestmentPlan, len(planModels))
	for i, model := range planModels {
		plans[i] = *model.ToDomain()
	}
	return plans, nil
}

// Save creates or updates a plan
func (r *GormPlanRepository) Save(ctx context.Context, plan *ledger.InvestmentPlan) error {
	return r.db.WithContext(ctx).Save(models.InvestmentPlanModelFromDomain(plan)).Error
}

var _ ledger.PlanRepository = (*GormPlanRepository)(nil)
