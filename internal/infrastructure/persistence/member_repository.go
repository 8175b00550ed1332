package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// memberNumberSequence is the ledger_sequences row that numbers members
const memberNumberSequence = "member_number"

// GormMemberRepository implements ledger.MemberRepository using GORM
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// FindByUserID finds a member profile by user ID
func (r *GormMemberRepository) FindByUserID(ctx context.Context, userID string) (*ledger.Member, error) {
	var model models.MemberModel
	if err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save upserts the profile by user ID. Member number and paid flag are
// owned by AssignMemberNumber and are never overwritten here.
func (r *GormMemberRepository) Save(ctx context.Context, m *ledger.Member) error {
	model, err := models.MemberModelFromDomain(m)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "kyc_status", "payout_method", "updated_at"}),
		}).
		Create(model).Error
}

// AssignMemberNumber allocates the next sequential number for the member and
// marks the registration paid. A member that already has a number keeps it.
// Call inside a transaction so the allocation and assignment commit together.
func (r *GormMemberRepository) AssignMemberNumber(ctx context.Context, userID, prefix string) (string, bool, error) {
	db := r.db.WithContext(ctx)

	var member models.MemberModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, ledger.ErrUserNotFound
		}
		return "", false, err
	}
	if member.MemberNumber != nil {
		if err := r.MarkRegistrationPaid(ctx, userID); err != nil {
			return "", false, err
		}
		return *member.MemberNumber, false, nil
	}

	seq, err := r.nextSequence(ctx, memberNumberSequence)
	if err != nil {
		return "", false, err
	}
	number := ledger.FormatMemberNumber(prefix, seq)

	result := db.Model(&models.MemberModel{}).
		Where("user_id = ? AND member_number IS NULL", userID).
		Updates(map[string]interface{}{
			"member_number":     number,
			"registration_paid": true,
			"updated_at":        shared.Now(),
		})
	if result.Error != nil {
		return "", false, result.Error
	}
	if result.RowsAffected == 0 {
		reloaded, err := r.FindByUserID(ctx, userID)
		if err != nil {
			return "", false, err
		}
		if reloaded == nil || reloaded.MemberNumber == "" {
			return "", false, fmt.Errorf("assign member number for %s: concurrent update left no number", userID)
		}
		return reloaded.MemberNumber, false, nil
	}
	return number, true, nil
}

// MarkRegistrationPaid sets the paid flag
func (r *GormMemberRepository) MarkRegistrationPaid(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&models.MemberModel{}).
		Where("user_id = ? AND registration_paid = ?", userID, false).
		Updates(map[string]interface{}{"registration_paid": true, "updated_at": shared.Now()}).Error
}

// nextSequence increments and returns the named counter. The UPDATE takes
// the row lock, so concurrent transactions receive distinct values.
func (r *GormMemberRepository) nextSequence(ctx context.Context, name string) (int64, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SequenceModel{Name: name, Value: 0, UpdatedAt: shared.Now()}).Error; err != nil {
		return 0, fmt.Errorf("init sequence %s: %w", name, err)
	}
	if err := db.Model(&models.SequenceModel{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{"value": gorm.Expr("value + 1"), "updated_at": shared.Now()}).Error; err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, err)
	}
	var seq models.SequenceModel
	if err := db.First(&seq, "name = ?", name).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return seq.Value, nil
}

var _ ledger.MemberRepository = (*GormMemberRepository)(nil)
