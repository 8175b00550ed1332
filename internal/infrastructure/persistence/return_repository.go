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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReturnRepository implements ledger.ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

func (r *GormReturnRepository) findOne(query *gorm.DB) (*ledger.Return, error) {
	var model models.ReturnModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a return by ID
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Return, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByInvestmentAndDate finds the return keyed by (investment, payout date)
func (r *GormReturnRepository) FindByInvestmentAndDate(ctx context.Context, investmentID uuid.UUID, payoutDate time.Time) (*ledger.Return, error) {
	return r.findOne(r.db.WithContext(ctx).
		Where("investment_id = ? AND payout_date = ?", investmentID, shared.NormalizeTime(payoutDate)))
}

// CreateIfAbsent inserts ret unless the (investment_id, payout_date) key is
// taken. Overlapping scheduler ticks and scheduler instances therefore
// converge on a single row per period.
func (r *GormReturnRepository) CreateIfAbsent(ctx context.Context, ret *ledger.Return) (*ledger.Return, bool, error) {
	ret.PayoutDate = shared.NormalizeTime(ret.PayoutDate)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.ReturnModelFromDomain(ret))
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return ret, true, nil
	}
	existing, err := r.FindByInvestmentAndDate(ctx, ret.InvestmentID, ret.PayoutDate)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("return for investment %s at %s: insert skipped but no row found",
			ret.InvestmentID, ret.PayoutDate.Format(time.RFC3339))
	}
	return existing, false, nil
}

// PromoteDue moves pending returns whose payout date has arrived to due
func (r *GormReturnRepository) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	now = shared.NormalizeTime(now)
	result := r.db.WithContext(ctx).
		Model(&models.ReturnModel{}).
		Where("status = ? AND payout_date <= ?", ledger.ReturnStatusPending, now).
		Updates(map[string]interface{}{
			"status":     string(ledger.ReturnStatusDue),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// MarkPaid sets status=paid unless the return is already paid. Concurrent
// callers serialize on the row; the loser gets false.
func (r *GormReturnRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentID uuid.UUID, paidAt time.Time) (bool, error) {
	paidAt = shared.NormalizeTime(paidAt)
	result := r.db.WithContext(ctx).
		Model(&models.ReturnModel{}).
		Where("id = ? AND status <> ?", id, ledger.ReturnStatusPaid).
		Updates(map[string]interface{}{
			"status":     string(ledger.ReturnStatusPaid),
			"paid_at":    paidAt,
			"payment_id": paymentID,
			"updated_at": paidAt,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindAll lists returns matching filter together with the total count
func (r *GormReturnRepository) FindAll(ctx context.Context, filter ledger.ReturnFilter) ([]ledger.Return, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReturnModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.InvestmentID != nil {
		query = query.Where("investment_id = ?", *filter.InvestmentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var returnModels []models.ReturnModel
	if err := paginate(query, filter.Filter, ReturnSortFields, "payout_date").Find(&returnModels).Error; err != nil {
		return nil, 0, err
	}
	out := make([]ledger.Return, len(returnModels))
	for i, model := range returnModels {
		out[i] = *model.ToDomain()
	}
	return out, total, nil
}

// CountByStatus counts returns in status
func (r *GormReturnRepository) CountByStatus(ctx context.Context, status ledger.ReturnStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReturnModel{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountUnpaid counts the investment's scheduled returns that are not paid
func (r *GormReturnRepository) CountUnpaid(ctx context.Context, investmentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReturnModel{}).
		Where("investment_id = ? AND status <> ?", investmentID, ledger.ReturnStatusPaid).
		Count(&count).Error
	return count, err
}

var _ ledger.ReturnRepository = (*GormReturnRepository)(nil)
