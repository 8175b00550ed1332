package ledger

import (
	"context"
	"fmt"

	"github.com/primebond/ledger/internal/domain/ledger"
	"go.uber.org/zap"
)

// MemberService maintains the local member profile store that backs the
// ProfileStore port.
type MemberService struct {
	members ledger.MemberRepository
	logger  *zap.Logger
}

// NewMemberService creates a new MemberService
func NewMemberService(members ledger.MemberRepository, logger *zap.Logger) *MemberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberService{members: members, logger: logger}
}

// Register creates a member profile, or updates name, email and phone of
// an existing one.
func (s *MemberService) Register(ctx context.Context, req RegisterMemberRequest) (*MemberResponse, error) {
	m, err := s.members.FindByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if m == nil {
		if m, err = ledger.NewMember(req.UserID, req.Name, req.Email); err != nil {
			return nil, err
		}
	} else {
		m.Name = req.Name
		m.Email = req.Email
		m.Touch()
	}
	m.Phone = req.Phone
	if err := s.members.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save member: %w", err)
	}
	s.logger.Info("Member registered", zap.String("user_id", m.UserID))
	resp := ToMemberResponse(m)
	return &resp, nil
}

// Get returns a member profile
func (s *MemberService) Get(ctx context.Context, userID string) (*MemberResponse, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := ToMemberResponse(m)
	return &resp, nil
}

// SetPayoutMethod replaces the member's payout destination. Settlement
// always reads the destination stored here at the time of payout.
func (s *MemberService) SetPayoutMethod(ctx context.Context, userID string, req SetPayoutMethodRequest) (*MemberResponse, error) {
	method, err := req.ToPayoutMethod()
	if err != nil {
		return nil, err
	}
	m, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m.SetPayoutMethod(method); err != nil {
		return nil, err
	}
	if err := s.members.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save member: %w", err)
	}
	s.logger.Info("Payout method updated",
		zap.String("user_id", userID),
		zap.String("kind", method.Kind().String()))
	resp := ToMemberResponse(m)
	return &resp, nil
}

// SetKycStatus records a KYC review decision
func (s *MemberService) SetKycStatus(ctx context.Context, userID string, status ledger.KycStatus) (*MemberResponse, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m.SetKycStatus(status); err != nil {
		return nil, err
	}
	if err := s.members.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save member: %w", err)
	}
	s.logger.Info("KYC status updated",
		zap.String("user_id", userID),
		zap.String("status", status.String()))
	resp := ToMemberResponse(m)
	return &resp, nil
}

func (s *MemberService) load(ctx context.Context, userID string) (*ledger.Member, error) {
	m, err := s.members.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if m == nil {
		return nil, ledger.ErrUserNotFound
	}
	return m, nil
}
