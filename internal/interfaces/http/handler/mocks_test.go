package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/auth"
	"github.com/primebond/ledger/internal/interfaces/http/dto"
	"github.com/primebond/ledger/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// asUser stands in for JWTAuth in handler tests
func asUser(userID string, role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTClaimsKey, &auth.Claims{UserID: userID, Role: role})
		c.Set(middleware.JWTUserIDKey, userID)
		c.Set(middleware.JWTRoleKey, string(role))
		c.Next()
	}
}

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(mw...)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func dataMap(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

type MockPlanService struct{ mock.Mock }

func (m *MockPlanService) ListActivePlans(ctx context.Context) ([]appledger.PlanResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).([]appledger.PlanResponse), args.Error(1)
}

func (m *MockPlanService) GetActivePlan(ctx context.Context, id uuid.UUID) (*appledger.PlanResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.PlanResponse), args.Error(1)
}

func (m *MockPlanService) CreatePlan(ctx context.Context, req appledger.CreatePlanRequest) (*appledger.PlanResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.PlanResponse), args.Error(1)
}

type MockQueryService struct{ mock.Mock }

func (m *MockQueryService) ListInvestments(ctx context.Context, f appledger.ListFilter) (shared.Paginated[appledger.InvestmentResponse], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(shared.Paginated[appledger.InvestmentResponse]), args.Error(1)
}

func (m *MockQueryService) ListPayments(ctx context.Context, f appledger.ListFilter) (shared.Paginated[appledger.PaymentResponse], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(shared.Paginated[appledger.PaymentResponse]), args.Error(1)
}

func (m *MockQueryService) ListReturns(ctx context.Context, f appledger.ListFilter) (shared.Paginated[appledger.ReturnResponse], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(shared.Paginated[appledger.ReturnResponse]), args.Error(1)
}

func (m *MockQueryService) ListROI(ctx context.Context, f appledger.ListFilter) (shared.Paginated[appledger.ROIResponse], error) {
	args := m.Called(ctx, f)
	return args.Get(0).(shared.Paginated[appledger.ROIResponse]), args.Error(1)
}

func (m *MockQueryService) DashboardStats(ctx context.Context) (*appledger.DashboardStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.DashboardStats), args.Error(1)
}

type MockInvestmentService struct{ mock.Mock }

func (m *MockInvestmentService) SelectPlan(ctx context.Context, req appledger.SelectPlanRequest) (*appledger.InvestmentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.InvestmentResponse), args.Error(1)
}

func (m *MockInvestmentService) Cancel(ctx context.Context, userID string, id uuid.UUID) (*appledger.InvestmentResponse, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.InvestmentResponse), args.Error(1)
}

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) OpenPending(ctx context.Context, req appledger.OpenPaymentRequest) (*appledger.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) ConfirmPayment(ctx context.Context, req appledger.ConfirmPaymentRequest) (*appledger.ConfirmResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.ConfirmResult), args.Error(1)
}

func (m *MockPaymentService) HandleGatewayCallback(ctx context.Context, cb appledger.GatewayCallback) (*appledger.ConfirmResult, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.ConfirmResult), args.Error(1)
}

type MockSettlementService struct{ mock.Mock }

func (m *MockSettlementService) Withdraw(ctx context.Context, req appledger.WithdrawRequest) (*appledger.WithdrawResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.WithdrawResult), args.Error(1)
}

type MockPayoutService struct{ mock.Mock }

func (m *MockPayoutService) RunTick(ctx context.Context) (*appledger.TickResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.TickResult), args.Error(1)
}

func (m *MockPayoutService) SetPayout(ctx context.Context, req appledger.SetPayoutRequest) (*appledger.SetPayoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.SetPayoutResult), args.Error(1)
}

type MockMemberService struct{ mock.Mock }

func (m *MockMemberService) Register(ctx context.Context, req appledger.RegisterMemberRequest) (*appledger.MemberResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.MemberResponse), args.Error(1)
}

func (m *MockMemberService) Get(ctx context.Context, userID string) (*appledger.MemberResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.MemberResponse), args.Error(1)
}

func (m *MockMemberService) SetPayoutMethod(ctx context.Context, userID string, req appledger.SetPayoutMethodRequest) (*appledger.MemberResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.MemberResponse), args.Error(1)
}

func (m *MockMemberService) SetKycStatus(ctx context.Context, userID string, status ledger.KycStatus) (*appledger.MemberResponse, error) {
	args := m.Called(ctx, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.MemberResponse), args.Error(1)
}
