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
)

// GormPaymentRepository implements ledger.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) findOne(query *gorm.DB) (*ledger.Payment, error) {
	var model models.PaymentModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Payment, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByReference finds a payment by its unique reference
func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*ledger.Payment, error) {
	return r.findOne(r.db.WithContext(ctx).Where("reference = ?", reference))
}

// FindLatest returns the newest payment for (user, type, method) in status
func (r *GormPaymentRepository) FindLatest(ctx context.Context, userID string, typ ledger.PaymentType, method ledger.PaymentMethod, status ledger.PaymentStatus) (*ledger.Payment, error) {
	return r.findOne(r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND method = ? AND status = ?", userID, typ, method, status).
		Order("created_at DESC, id DESC"))
}

// ExistsSuccessful reports whether the member has a successful payment of typ
func (r *GormPaymentRepository) ExistsSuccessful(ctx context.Context, userID string, typ ledger.PaymentType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, typ, ledger.PaymentStatusSuccess).
		Count(&count).Error
	return count > 0, err
}

// FindAll lists payments matching filter together with the total count
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter ledger.PaymentFilter) ([]ledger.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var paymentModels []models.PaymentModel
	if err := paginate(query, filter.Filter, PaymentSortFields, "created_at").Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}
	payments := make([]ledger.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, total, nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *ledger.Payment) error {
	return r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error
}

// TransitionStatus moves a payment from one status to another with a single
// conditional UPDATE. Of two concurrent callers exactly one sees true.
func (r *GormPaymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to ledger.PaymentStatus, at time.Time, failReason string) (bool, error) {
	at = shared.NormalizeTime(at)
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": at,
		"version":    gorm.Expr("version + 1"),
	}
	switch to {
	case ledger.PaymentStatusSuccess:
		updates["confirmed_at"] = at
	case ledger.PaymentStatusFailed:
		updates["failed_at"] = at
		updates["fail_reason"] = failReason
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateCheckout stores the gateway checkout details of a pending payment
func (r *GormPaymentRepository) UpdateCheckout(ctx context.Context, id uuid.UUID, checkoutURL, gatewayTxnID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"checkout_url":   checkoutURL,
			"gateway_txn_id": gatewayTxnID,
			"updated_at":     shared.Now(),
		}).Error
}

// SumSuccessful totals successful payments of the given types (all types when none given)
func (r *GormPaymentRepository) SumSuccessful(ctx context.Context, types ...ledger.PaymentType) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("status = ?", ledger.PaymentStatusSuccess)
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		query = query.Where("type IN ?", names)
	}
	return sumColumn(query, "amount")
}

var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
