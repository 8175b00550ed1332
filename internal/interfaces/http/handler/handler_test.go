package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/auth"
	"github.com/primebond/ledger/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPlanHandler(t *testing.T) {
	plans := new(MockPlanService)
	h := NewPlanHandler(plans)
	r := newTestEngine(asUser("admin-1", auth.RoleAdmin))
	r.GET("/plans", h.List)
	r.GET("/plans/:id", h.Get)
	r.POST("/admin/plans", h.Create)

	t.Run("list", func(t *testing.T) {
		plans.On("ListActivePlans", mock.Anything).Return([]appledger.PlanResponse{
			{ID: uuid.New(), Name: "Silver", MinAmount: decimal.NewFromInt(1000)},
		}, nil).Once()

		w := doJSON(r, http.MethodGet, "/plans", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("get with malformed id", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/plans/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get unknown plan", func(t *testing.T) {
		id := uuid.New()
		plans.On("GetActivePlan", mock.Anything, id).Return(nil, ledger.ErrPlanNotFound).Once()

		w := doJSON(r, http.MethodGet, "/plans/"+id.String(), nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, ledger.ReasonPlanNotFound, resp.Error.Reason)
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("create validates body", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/admin/plans", `{"min_amount":"1000","duration_in_periods":12,"cadence":"weekly"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		fields := map[string]bool{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = true
		}
		assert.True(t, fields["name"])
		assert.True(t, fields["cadence"])
	})

	t.Run("create duplicate name", func(t *testing.T) {
		plans.On("CreatePlan", mock.Anything, mock.MatchedBy(func(req appledger.CreatePlanRequest) bool {
			return req.Name == "Gold"
		})).Return(nil, shared.NewConflictError(ledger.ReasonPlanNameTaken, "plan name already exists")).Once()

		w := doJSON(r, http.MethodPost, "/admin/plans", `{"name":"Gold","min_amount":"2000","duration_in_periods":12}`)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, ledger.ReasonPlanNameTaken, decode(t, w).Error.Reason)
	})

	plans.AssertExpectations(t)
}

func TestInvestmentHandler_Select(t *testing.T) {
	investments := new(MockInvestmentService)
	h := NewInvestmentHandler(investments)
	r := newTestEngine(asUser("user-1", auth.RoleMember))
	r.POST("/investments", h.Select)

	planID := uuid.New()

	t.Run("pins the caller", func(t *testing.T) {
		investments.On("SelectPlan", mock.Anything, mock.MatchedBy(func(req appledger.SelectPlanRequest) bool {
			return req.UserID == "user-1" && req.PlanID == planID && req.Amount.Equal(decimal.NewFromInt(5000))
		})).Return(&appledger.InvestmentResponse{ID: uuid.New(), Status: "pending"}, nil).Once()

		w := doJSON(r, http.MethodPost, "/investments", map[string]any{
			"user_id": "someone-else",
			"plan_id": planID,
			"amount":  "5000",
			"cadence": "monthly",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "pending", dataMap(t, decode(t, w))["status"])
	})

	t.Run("precondition renders 422", func(t *testing.T) {
		investments.On("SelectPlan", mock.Anything, mock.Anything).Return(nil, ledger.ErrKycNotApproved).Once()

		w := doJSON(r, http.MethodPost, "/investments", map[string]any{"plan_id": planID, "amount": "5000"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodePrecondition, resp.Error.Code)
		assert.Equal(t, ledger.ReasonKycNotApproved, resp.Error.Reason)
	})

	investments.AssertExpectations(t)
}

func TestPaymentHandler(t *testing.T) {
	payments := new(MockPaymentService)
	h := NewPaymentHandler(payments)
	r := newTestEngine(asUser("user-1", auth.RoleMember))
	r.POST("/payments", h.Open)
	r.POST("/admin/payments/confirm", h.Confirm)

	t.Run("open", func(t *testing.T) {
		payments.On("OpenPending", mock.Anything, mock.MatchedBy(func(req appledger.OpenPaymentRequest) bool {
			return req.UserID == "user-1" && req.Type == "registration" && req.Method == "card"
		})).Return(&appledger.PaymentResponse{
			Reference:   "REG-user-1-1-abcdef",
			Status:      "pending",
			CheckoutURL: "https://pay.example/cs_1",
		}, nil).Once()

		w := doJSON(r, http.MethodPost, "/payments", `{"type":"registration","method":"card"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "https://pay.example/cs_1", dataMap(t, decode(t, w))["checkout_url"])
	})

	t.Run("open rejects unknown method", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/payments", `{"type":"registration","method":"cheque"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("gateway outage renders 502", func(t *testing.T) {
		payments.On("OpenPending", mock.Anything, mock.MatchedBy(func(req appledger.OpenPaymentRequest) bool {
			return req.Method == "crypto"
		})).Return(nil, shared.NewExternalServiceError(ledger.ReasonGatewayUnavailable, "payment gateway is unavailable", errors.New("dial tcp"))).Once()

		w := doJSON(r, http.MethodPost, "/payments", `{"type":"registration","method":"crypto"}`)
		require.Equal(t, http.StatusBadGateway, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeExternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "dial tcp")
	})

	t.Run("confirm twice is not an error", func(t *testing.T) {
		payments.On("ConfirmPayment", mock.Anything, appledger.ConfirmPaymentRequest{Reference: "INV-1"}).
			Return(&appledger.ConfirmResult{
				Payment:          appledger.PaymentResponse{Reference: "INV-1", Status: "success"},
				AlreadyConfirmed: true,
			}, nil).Once()

		w := doJSON(r, http.MethodPost, "/admin/payments/confirm", `{"reference":"INV-1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, dataMap(t, decode(t, w))["already_confirmed"])
	})

	payments.AssertExpectations(t)
}

func TestSettlementHandler(t *testing.T) {
	settlement := new(MockSettlementService)
	payouts := new(MockPayoutService)
	h := NewSettlementHandler(settlement, payouts)
	r := newTestEngine(asUser("ops-1", auth.RoleAdmin))
	r.POST("/admin/withdrawals", h.Withdraw)
	r.POST("/admin/returns/schedule", h.SetPayout)
	r.POST("/admin/scheduler/tick", h.RunTick)

	req := appledger.WithdrawRequest{UserID: "user-1", InvestmentID: uuid.New(), ReturnID: uuid.New()}

	t.Run("withdraw", func(t *testing.T) {
		settlement.On("Withdraw", mock.Anything, req).Return(&appledger.WithdrawResult{
			ReturnID:         req.ReturnID,
			Amount:           decimal.RequireFromString("333.33"),
			Currency:         "AED",
			PayoutMethod:     "bank",
			InvestmentStatus: "active",
			PayoutsMade:      1,
			TotalPayouts:     12,
		}, nil).Once()

		w := doJSON(r, http.MethodPost, "/admin/withdrawals", req)
		require.Equal(t, http.StatusOK, w.Code)
		data := dataMap(t, decode(t, w))
		assert.Equal(t, "333.33", data["amount"])
		assert.Equal(t, "bank", data["payout_method"])
	})

	t.Run("second withdraw conflicts", func(t *testing.T) {
		settlement.On("Withdraw", mock.Anything, req).Return(nil, ledger.ErrReturnAlreadyPaid).Once()

		w := doJSON(r, http.MethodPost, "/admin/withdrawals", req)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, ledger.ReasonReturnAlreadyPaid, decode(t, w).Error.Reason)
	})

	t.Run("withdraw requires ids", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/admin/withdrawals", `{"user_id":"user-1"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("set payout creates", func(t *testing.T) {
		invID := uuid.New()
		payouts.On("SetPayout", mock.Anything, mock.MatchedBy(func(r appledger.SetPayoutRequest) bool {
			return r.InvestmentID == invID && r.PayoutDate == nil
		})).Return(&appledger.SetPayoutResult{Created: true}, nil).Once()

		w := doJSON(r, http.MethodPost, "/admin/returns/schedule", map[string]any{"investment_id": invID})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("set payout existing", func(t *testing.T) {
		invID := uuid.New()
		payouts.On("SetPayout", mock.Anything, mock.MatchedBy(func(r appledger.SetPayoutRequest) bool {
			return r.InvestmentID == invID
		})).Return(&appledger.SetPayoutResult{Created: false}, nil).Once()

		w := doJSON(r, http.MethodPost, "/admin/returns/schedule", map[string]any{"investment_id": invID})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tick", func(t *testing.T) {
		payouts.On("RunTick", mock.Anything).Return(&appledger.TickResult{
			StartedAt: time.Now(),
			Created:   2,
			Promoted:  5,
		}, nil).Once()

		w := doJSON(r, http.MethodPost, "/admin/scheduler/tick", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := dataMap(t, decode(t, w))
		assert.EqualValues(t, 2, data["created"])
		assert.EqualValues(t, 5, data["promoted"])
	})

	settlement.AssertExpectations(t)
	payouts.AssertExpectations(t)
}

func TestListingHandler(t *testing.T) {
	queries := new(MockQueryService)
	h := NewListingHandler(queries)

	member := newTestEngine(asUser("user-1", auth.RoleMember))
	member.GET("/returns", h.MyReturns)
	admin := newTestEngine(asUser("ops-1", auth.RoleAdmin))
	admin.GET("/admin/returns", h.AllReturns)
	admin.GET("/admin/dashboard", h.Dashboard)

	page := shared.NewPaginated([]appledger.ReturnResponse{{ID: uuid.New(), Status: "due"}}, 21, 2, 10)

	t.Run("member listing is pinned to the caller", func(t *testing.T) {
		queries.On("ListReturns", mock.Anything, appledger.ListFilter{UserID: "user-1", Page: 2, PageSize: 10}).
			Return(page, nil).Once()

		w := doJSON(member, http.MethodGet, "/returns?user_id=user-2&page=2&page_size=10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(21), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("admin listing filters", func(t *testing.T) {
		queries.On("ListReturns", mock.Anything, appledger.ListFilter{UserID: "user-2", Status: "due"}).
			Return(page, nil).Once()

		w := doJSON(admin, http.MethodGet, "/admin/returns?user_id=user-2&status=due", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("page size is bounded", func(t *testing.T) {
		w := doJSON(admin, http.MethodGet, "/admin/returns?page_size=1000", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		queries.On("DashboardStats", mock.Anything).Return(&appledger.DashboardStats{
			TotalDeposits:  decimal.NewFromInt(2050),
			CompletionRate: decimal.RequireFromString("50.00"),
			DueReturns:     3,
			Currency:       "AED",
		}, nil).Once()

		w := doJSON(admin, http.MethodGet, "/admin/dashboard", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2050", dataMap(t, decode(t, w))["total_deposits"])
	})

	t.Run("unexpected error is masked", func(t *testing.T) {
		queries.On("DashboardStats", mock.Anything).Return(nil, errors.New("pq: connection refused")).Once()

		w := doJSON(admin, http.MethodGet, "/admin/dashboard", nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "pq")
	})

	queries.AssertExpectations(t)
}

func TestMemberHandler(t *testing.T) {
	members := new(MockMemberService)
	h := NewMemberHandler(members)
	r := newTestEngine(asUser("user-1", auth.RoleMember))
	r.GET("/members/me", h.Me)
	r.PUT("/members/me/payout-method", h.SetPayoutMethod)
	r.POST("/admin/members", h.Register)
	r.PUT("/admin/members/:userId/kyc", h.SetKycStatus)

	t.Run("me", func(t *testing.T) {
		members.On("Get", mock.Anything, "user-1").Return(&appledger.MemberResponse{UserID: "user-1", KycStatus: "pending"}, nil).Once()
		w := doJSON(r, http.MethodGet, "/members/me", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("payout method", func(t *testing.T) {
		members.On("SetPayoutMethod", mock.Anything, "user-1", mock.MatchedBy(func(req appledger.SetPayoutMethodRequest) bool {
			return req.Kind == "crypto" && req.WalletAddress == "0xabc"
		})).Return(&appledger.MemberResponse{UserID: "user-1", PayoutMethod: "crypto"}, nil).Once()

		w := doJSON(r, http.MethodPut, "/members/me/payout-method", `{"kind":"crypto","wallet_address":"0xabc","coin_type":"USDT"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid payout details", func(t *testing.T) {
		members.On("SetPayoutMethod", mock.Anything, "user-1", mock.Anything).
			Return(nil, shared.NewValidationError(ledger.ReasonInvalidPayoutMethod, "account number is required")).Once()

		w := doJSON(r, http.MethodPut, "/members/me/payout-method", `{"kind":"bank","account_holder":"A"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ledger.ReasonInvalidPayoutMethod, decode(t, w).Error.Reason)
	})

	t.Run("register", func(t *testing.T) {
		members.On("Register", mock.Anything, appledger.RegisterMemberRequest{UserID: "user-9", Name: "Nora", Email: "nora@example.com"}).
			Return(&appledger.MemberResponse{UserID: "user-9"}, nil).Once()

		w := doJSON(r, http.MethodPost, "/admin/members", `{"user_id":"user-9","name":"Nora","email":"nora@example.com"}`)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(r, http.MethodPost, "/admin/members", `{"user_id":"user-9","name":"Nora","email":"not-an-email"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("kyc", func(t *testing.T) {
		members.On("SetKycStatus", mock.Anything, "user-9", ledger.KycStatusApproved).
			Return(&appledger.MemberResponse{UserID: "user-9", KycStatus: "approved"}, nil).Once()

		w := doJSON(r, http.MethodPut, "/admin/members/user-9/kyc", `{"status":"approved"}`)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(r, http.MethodPut, "/admin/members/user-9/kyc", `{"status":"maybe"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	members.AssertExpectations(t)
}

func TestCurrentUserRequired(t *testing.T) {
	h := NewPaymentHandler(new(MockPaymentService))
	r := newTestEngine()
	r.POST("/payments", h.Open)

	w := doJSON(r, http.MethodPost, "/payments", `{"type":"registration","method":"card"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	h := NewHealthHandler("1.2.3", map[string]Checker{"database": ok, "redis": down})
	r := newTestEngine()
	r.GET("/health", h.Live)
	r.GET("/ready", h.Ready)

	w := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.2.3", dataMap(t, decode(t, w))["version"])

	w = doJSON(r, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	data := dataMap(t, resp)
	assert.Equal(t, "ok", data["database"])
	assert.Equal(t, "connection refused", data["redis"])
}
