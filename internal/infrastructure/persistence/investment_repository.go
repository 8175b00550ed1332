package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvestmentRepository implements ledger.InvestmentRepository using GORM
type GormInvestmentRepository struct {
	db *gorm.DB
}

// NewGormInvestmentRepository creates a new GormInvestmentRepository
func NewGormInvestmentRepository(db *gorm.DB) *GormInvestmentRepository {
	return &GormInvestmentRepository{db: db}
}

func (r *GormInvestmentRepository) findOne(query *gorm.DB, where string, args ...interface{}) (*ledger.Investment, error) {
	var model models.InvestmentModel
	if err := query.Where(where, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an investment by ID
func (r *GormInvestmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Investment, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate finds an investment and takes a row lock (SELECT ... FOR UPDATE).
// Only meaningful inside a transaction.
func (r *GormInvestmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Investment, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// FindPendingByUser finds the member's pending investment, if any
func (r *GormInvestmentRepository) FindPendingByUser(ctx context.Context, userID string) (*ledger.Investment, error) {
	return r.findOne(r.db.WithContext(ctx).Order("created_at DESC"),
		"user_id = ? AND status = ?", userID, ledger.InvestmentStatusPending)
}

// ExistsActiveForUser reports whether the member has an active investment
func (r *GormInvestmentRepository) ExistsActiveForUser(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InvestmentModel{}).
		Where("user_id = ? AND status = ?", userID, ledger.InvestmentStatusActive).
		Count(&count).Error
	return count > 0, err
}

// FindDueForPayout returns active investments with next_payout_date <= now, oldest first
func (r *GormInvestmentRepository) FindDueForPayout(ctx context.Context, now time.Time, limit int) ([]ledger.Investment, error) {
	var invModels []models.InvestmentModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_payout_date IS NOT NULL AND next_payout_date <= ?", ledger.InvestmentStatusActive, shared.NormalizeTime(now)).
		Order("next_payout_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&invModels).Error; err != nil {
		return nil, err
	}
	return toInvestments(invModels), nil
}

// FindAll lists investments matching filter together with the total count
func (r *GormInvestmentRepository) FindAll(ctx context.Context, filter ledger.InvestmentFilter) ([]ledger.Investment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvestmentModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invModels []models.InvestmentModel
	if err := paginate(query, filter.Filter, InvestmentSortFields, "created_at").Find(&invModels).Error; err != nil {
		return nil, 0, err
	}
	return toInvestments(invModels), total, nil
}

// Save inserts a new investment or updates an existing one. Updates are
// guarded by the version the aggregate was loaded with. A second pending or
// active investment for the member violates a unique index and is reported
// as ErrPendingInvestmentExists or ErrActiveInvestmentExists.
func (r *GormInvestmentRepository) Save(ctx context.Context, inv *ledger.Investment) error {
	model := models.InvestmentModelFromDomain(inv)
	if inv.Version <= 1 {
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
			Create(model)
		if result.Error != nil {
			if isDuplicateKey(r.db, result.Error) {
				return openInvestmentConflict(inv.Status)
			}
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}
	}
	result := r.db.WithContext(ctx).
		Model(&models.InvestmentModel{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version-1).
		Select("*").Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		if isDuplicateKey(r.db, result.Error) {
			return openInvestmentConflict(inv.Status)
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func openInvestmentConflict(status ledger.InvestmentStatus) error {
	if status == ledger.InvestmentStatusActive {
		return ledger.ErrActiveInvestmentExists
	}
	return ledger.ErrPendingInvestmentExists
}

// isDuplicateKey reports whether err is a unique constraint violation,
// using the dialector's error translation.
func isDuplicateKey(db *gorm.DB, err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if translator, ok := db.Dialector.(gorm.ErrorTranslator); ok {
		return errors.Is(translator.Translate(err), gorm.ErrDuplicatedKey)
	}
	return false
}

// CountByStatus returns the number of investments per status
func (r *GormInvestmentRepository) CountByStatus(ctx context.Context) (map[ledger.InvestmentStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.InvestmentModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[ledger.InvestmentStatus]int64, len(rows))
	for _, row := range rows {
		counts[ledger.InvestmentStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// SumAmountByStatus totals the principal of investments in status
func (r *GormInvestmentRepository) SumAmountByStatus(ctx context.Context, status ledger.InvestmentStatus) (decimal.Decimal, error) {
	return sumColumn(r.db.WithContext(ctx).Model(&models.InvestmentModel{}).Where("status = ?", status), "amount")
}

// sumColumn returns COALESCE(SUM(column), 0) over query
func sumColumn(query *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := query.Select("COALESCE(SUM(" + column + "), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func toInvestments(invModels []models.InvestmentModel) []ledger.Investment {
	out := make([]ledger.Investment, len(invModels))
	for i, model := range invModels {
		out[i] = *model.ToDomain()
	}
	return out
}

var _ ledger.InvestmentRepository = (*GormInvestmentRepository)(nil)
