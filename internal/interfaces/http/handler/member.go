package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
)

// MemberService manages the local member profile
type MemberService interface {
	Register(ctx context.Context, req appledger.RegisterMemberRequest) (*appledger.MemberResponse, error)
	Get(ctx context.Context, userID string) (*appledger.MemberResponse, error)
	SetPayoutMethod(ctx context.Context, userID string, req appledger.SetPayoutMethodRequest) (*appledger.MemberResponse, error)
	SetKycStatus(ctx context.Context, userID string, status ledger.KycStatus) (*appledger.MemberResponse, error)
}

// KycStatusRequest is an operator's KYC review decision
type KycStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
}

// MemberHandler serves member profiles
type MemberHandler struct {
	BaseHandler
	members MemberService
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(members MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

// Me handles GET /members/me
func (h *MemberHandler) Me(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	m, err := h.members.Get(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// SetPayoutMethod handles PUT /members/me/payout-method
func (h *MemberHandler) SetPayoutMethod(c *gin.Context) {
	userID, ok := h.CurrentUser(c)
	if !ok {
		return
	}
	var req appledger.SetPayoutMethodRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.members.SetPayoutMethod(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// Register handles POST /admin/members. The identity service pushes new
// and changed profiles here.
func (h *MemberHandler) Register(c *gin.Context) {
	var req appledger.RegisterMemberRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.members.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// SetKycStatus handles PUT /admin/members/:userId/kyc
func (h *MemberHandler) SetKycStatus(c *gin.Context) {
	var req KycStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.members.SetKycStatus(c.Request.Context(), c.Param("userId"), ledger.KycStatus(strings.ToLower(req.Status)))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}
