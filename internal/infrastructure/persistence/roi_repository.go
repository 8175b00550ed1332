package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormROIRepository implements ledger.ROIRepository using GORM
type GormROIRepository struct {
	db *gorm.DB
}

// NewGormROIRepository creates a new GormROIRepository
func NewGormROIRepository(db *gorm.DB) *GormROIRepository {
	return &GormROIRepository{db: db}
}

// FindByInvestment finds the ROI record of (user, investment)
func (r *GormROIRepository) FindByInvestment(ctx context.Context, userID string, investmentID uuid.UUID) (*ledger.ROI, error) {
	var model models.ROIModel
	if err := r.db.WithContext(ctx).
		First(&model, "user_id = ? AND investment_id = ?", userID, investmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateIfAbsent inserts roi unless a record for the same (user, investment)
// already exists, in which case the stored record is returned untouched.
func (r *GormROIRepository) CreateIfAbsent(ctx context.Context, roi *ledger.ROI) (*ledger.ROI, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.ROIModelFromDomain(roi))
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return roi, true, nil
	}
	existing, err := r.FindByInvestment(ctx, roi.UserID, roi.InvestmentID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("roi for investment %s: insert skipped but no row found", roi.InvestmentID)
	}
	return existing, false, nil
}

// ApplyPayout adds amount to total_paid and increments payouts_made in one UPDATE
func (r *GormROIRepository) ApplyPayout(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	at = shared.NormalizeTime(at)
	result := r.db.WithContext(ctx).
		Model(&models.ROIModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_paid":       gorm.Expr("total_paid + ?", amount),
			"payouts_made":     gorm.Expr("payouts_made + 1"),
			"last_payout_date": at,
			"updated_at":       at,
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrROINotFound
	}
	return nil
}

// FindAll lists ROI records matching filter together with the total count
func (r *GormROIRepository) FindAll(ctx context.Context, filter ledger.ROIFilter) ([]ledger.ROI, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ROIModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var roiModels []models.ROIModel
	if err := paginate(query, filter.Filter, ROISortFields, "created_at").Find(&roiModels).Error; err != nil {
		return nil, 0, err
	}
	out := make([]ledger.ROI, len(roiModels))
	for i, model := range roiModels {
		out[i] = *model.ToDomain()
	}
	return out, total, nil
}

// SumTotalPaid totals every ROI payout made so far
func (r *GormROIRepository) SumTotalPaid(ctx context.Context) (decimal.Decimal, error) {
	return sumColumn(r.db.WithContext(ctx).Model(&models.ROIModel{}), "total_paid")
}

var _ ledger.ROIRepository = (*GormROIRepository)(nil)
