package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QueryService serves read-only listings for members and operators
type QueryService struct {
	investments ledger.InvestmentRepository
	payments    ledger.PaymentRepository
	rois        ledger.ROIRepository
	returns     ledger.ReturnRepository
	currency    string
	logger      *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	investments ledger.InvestmentRepository,
	payments ledger.PaymentRepository,
	rois ledger.ROIRepository,
	returns ledger.ReturnRepository,
	settings Settings,
	logger *zap.Logger,
) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		investments: investments,
		payments:    payments,
		rois:        rois,
		returns:     returns,
		currency:    string(settings.withDefaults().Currency),
		logger:      logger,
	}
}

func (f ListFilter) toShared() shared.Filter {
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
	}.Normalize()
}

// ListInvestments returns investments. An empty UserID lists every member's.
func (q *QueryService) ListInvestments(ctx context.Context, filter ListFilter) (shared.Paginated[InvestmentResponse], error) {
	f := ledger.InvestmentFilter{Filter: filter.toShared(), UserID: filter.UserID}
	if filter.Status != "" {
		status := ledger.InvestmentStatus(filter.Status)
		if !status.IsValid() {
			return shared.Paginated[InvestmentResponse]{}, shared.NewValidationError(ledger.ReasonInvalidTransition, fmt.Sprintf("unknown investment status %q", filter.Status))
		}
		f.Status = &status
	}
	items, total, err := q.investments.FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[InvestmentResponse]{}, fmt.Errorf("list investments: %w", err)
	}
	out := make([]InvestmentResponse, len(items))
	for i := range items {
		out[i] = ToInvestmentResponse(&items[i])
	}
	return shared.NewPaginated(out, total, f.Page, f.PageSize), nil
}

// ListPayments returns payments. An empty UserID lists every member's.
func (q *QueryService) ListPayments(ctx context.Context, filter ListFilter) (shared.Paginated[PaymentResponse], error) {
	f := ledger.PaymentFilter{Filter: filter.toShared(), UserID: filter.UserID}
	if filter.Status != "" {
		status := ledger.PaymentStatus(filter.Status)
		if !status.IsValid() {
			return shared.Paginated[PaymentResponse]{}, shared.NewValidationError(ledger.ReasonInvalidTransition, fmt.Sprintf("unknown payment status %q", filter.Status))
		}
		f.Status = &status
	}
	items, total, err := q.payments.FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[PaymentResponse]{}, fmt.Errorf("list payments: %w", err)
	}
	out := make([]PaymentResponse, len(items))
	for i := range items {
		out[i] = ToPaymentResponse(&items[i])
	}
	return shared.NewPaginated(out, total, f.Page, f.PageSize), nil
}

// ListReturns returns scheduled and settled payouts
func (q *QueryService) ListReturns(ctx context.Context, filter ListFilter) (shared.Paginated[ReturnResponse], error) {
	f := ledger.ReturnFilter{Filter: filter.toShared(), UserID: filter.UserID}
	if filter.Status != "" {
		status := ledger.ReturnStatus(filter.Status)
		if !status.IsValid() {
			return shared.Paginated[ReturnResponse]{}, shared.NewValidationError(ledger.ReasonInvalidTransition, fmt.Sprintf("unknown return status %q", filter.Status))
		}
		f.Status = &status
	}
	items, total, err := q.returns.FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[ReturnResponse]{}, fmt.Errorf("list returns: %w", err)
	}
	out := make([]ReturnResponse, len(items))
	for i := range items {
		out[i] = ToReturnResponse(&items[i])
	}
	return shared.NewPaginated(out, total, f.Page, f.PageSize), nil
}

// ListROI returns ROI records with remaining payouts and the owning
// investment's next payout date.
func (q *QueryService) ListROI(ctx context.Context, filter ListFilter) (shared.Paginated[ROIResponse], error) {
	f := ledger.ROIFilter{Filter: filter.toShared(), UserID: filter.UserID}
	items, total, err := q.rois.FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[ROIResponse]{}, fmt.Errorf("list ROI: %w", err)
	}

	next := make(map[uuid.UUID]*time.Time, len(items))
	out := make([]ROIResponse, len(items))
	for i := range items {
		invID := items[i].InvestmentID
		date, seen := next[invID]
		if !seen {
			inv, err := q.investments.FindByID(ctx, invID)
			if err != nil {
				return shared.Paginated[ROIResponse]{}, fmt.Errorf("load investment %s: %w", invID, err)
			}
			if inv != nil {
				date = inv.NextPayoutDate
			}
			next[invID] = date
		}
		out[i] = ToROIResponse(&items[i], date)
	}
	return shared.NewPaginated(out, total, f.Page, f.PageSize), nil
}

// DashboardStats aggregates the operator dashboard figures
func (q *QueryService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	deposits, err := q.payments.SumSuccessful(ctx, ledger.PaymentTypeRegistration, ledger.PaymentTypeInvestment)
	if err != nil {
		return nil, fmt.Errorf("sum deposits: %w", err)
	}
	invested, err := q.investments.SumAmountByStatus(ctx, ledger.InvestmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("sum invested: %w", err)
	}
	paid, err := q.rois.SumTotalPaid(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum ROI paid: %w", err)
	}
	due, err := q.returns.CountByStatus(ctx, ledger.ReturnStatusDue)
	if err != nil {
		return nil, fmt.Errorf("count due returns: %w", err)
	}
	counts, err := q.investments.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count investments: %w", err)
	}

	byStatus := make(map[string]int64, len(counts))
	var considered int64
	for status, n := range counts {
		byStatus[status.String()] = n
		if status != ledger.InvestmentStatusCancelled {
			considered += n
		}
	}

	return &DashboardStats{
		TotalDeposits:       deposits,
		TotalInvested:       invested,
		TotalROIPaid:        paid,
		CompletionRate:      completionRate(counts[ledger.InvestmentStatusCompleted], considered),
		DueReturns:          due,
		InvestmentsByStatus: byStatus,
		Currency:            q.currency,
	}, nil
}

// completionRate is completed / considered as a percentage with 2 decimals
func completionRate(completed, considered int64) decimal.Decimal {
	if considered == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(completed).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(considered)).
		Round(2)
}
