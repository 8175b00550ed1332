package ledger

import (
	"fmt"
	"strings"

	"github.com/primebond/ledger/internal/domain/shared"
)

// KycStatus is the identity verification state of a member
type KycStatus string

const (
	KycStatusPending  KycStatus = "pending"
	KycStatusApproved KycStatus = "approved"
	KycStatusRejected KycStatus = "rejected"
)

func (s KycStatus) IsValid() bool {
	return s == KycStatusPending || s == KycStatusApproved || s == KycStatusRejected
}

func (s KycStatus) String() string {
	return string(s)
}

// Member is the ledger's view of a user profile: registration state, KYC
// and the payout destination resolved at settlement time.
type Member struct {
	shared.BaseAggregateRoot

	UserID           string       `json:"user_id"`
	MemberNumber     string       `json:"member_number,omitempty"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	Phone            string       `json:"phone,omitempty"`
	RegistrationPaid bool         `json:"registration_paid"`
	KycStatus        KycStatus    `json:"kyc_status"`
	PayoutMethod     PayoutMethod `json:"-"`
}

// NewMember creates a member with pending KYC
func NewMember(userID, name, email string) (*Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, shared.NewValidationError(ReasonInvalidMemberReference, "user ID cannot be empty")
	}
	return &Member{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		Name:              strings.TrimSpace(name),
		Email:             strings.TrimSpace(email),
		KycStatus:         KycStatusPending,
	}, nil
}

// HasMemberNumber reports whether a permanent member number was assigned
func (m *Member) HasMemberNumber() bool {
	return m.MemberNumber != ""
}

// SetPayoutMethod replaces the payout destination after validating it
func (m *Member) SetPayoutMethod(method PayoutMethod) error {
	if method == nil {
		return shared.NewValidationError(ReasonInvalidPayoutMethod, "payout method is required")
	}
	if err := method.Validate(); err != nil {
		return err
	}
	m.PayoutMethod = method
	m.Touch()
	return nil
}

// SetKycStatus records a KYC review decision
func (m *Member) SetKycStatus(status KycStatus) error {
	if !status.IsValid() {
		return shared.NewValidationError(ReasonInvalidKycStatus, fmt.Sprintf("invalid KYC status %q", status))
	}
	m.KycStatus = status
	m.Touch()
	return nil
}

// FormatMemberNumber renders a sequence number as prefix + 5 digits, e.g. PRB00001
func FormatMemberNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%05d", prefix, seq)
}
