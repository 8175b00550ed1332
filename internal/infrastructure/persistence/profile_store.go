package persistence

import (
	"context"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormProfileStore serves profile lookups from the ledger_members table
type GormProfileStore struct {
	members  *GormMemberRepository
	payments *GormPaymentRepository
}

// NewGormProfileStore creates a profile store backed by db
func NewGormProfileStore(db *gorm.DB) *GormProfileStore {
	return &GormProfileStore{
		members:  NewGormMemberRepository(db),
		payments: NewGormPaymentRepository(db),
	}
}

// GetUser returns the member profile or ledger.ErrUserNotFound
func (s *GormProfileStore) GetUser(ctx context.Context, userID string) (*ledger.Member, error) {
	m, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ledger.ErrUserNotFound
	}
	return m, nil
}

func (s *GormProfileStore) IsKycApproved(ctx context.Context, userID string) (bool, error) {
	m, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return m.KycStatus == ledger.KycStatusApproved, nil
}

// GetPayoutMethod returns nil when the member has not configured a destination
func (s *GormProfileStore) GetPayoutMethod(ctx context.Context, userID string) (ledger.PayoutMethod, error) {
	m, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.PayoutMethod, nil
}

// HasSuccessfulRegistrationPayment checks the profile flag first and falls
// back to the payment history.
func (s *GormProfileStore) HasSuccessfulRegistrationPayment(ctx context.Context, userID string) (bool, error) {
	m, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if m.RegistrationPaid {
		return true, nil
	}
	return s.payments.ExistsSuccessful(ctx, userID, ledger.PaymentTypeRegistration)
}

var _ appledger.ProfileStore = (*GormProfileStore)(nil)
