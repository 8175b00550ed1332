package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
)

// QueryService serves the read side of the ledger
type QueryService interface {
	ListInvestments(ctx context.Context, filter appledger.ListFilter) (shared.Paginated[appledger.InvestmentResponse], error)
	ListPayments(ctx context.Context, filter appledger.ListFilter) (shared.Paginated[appledger.PaymentResponse], error)
	ListReturns(ctx context.Context, filter appledger.ListFilter) (shared.Paginated[appledger.ReturnResponse], error)
	ListROI(ctx context.Context, filter appledger.ListFilter) (shared.Paginated[appledger.ROIResponse], error)
	DashboardStats(ctx context.Context) (*appledger.DashboardStats, error)
}

// listFunc is one of the QueryService list methods
type listFunc[T any] func(ctx context.Context, filter appledger.ListFilter) (shared.Paginated[T], error)

// ListingHandler serves paginated ledger listings. Member routes are pinned
// to the caller; admin routes accept user_id and status filters.
type ListingHandler struct {
	BaseHandler
	queries QueryService
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(queries QueryService) *ListingHandler {
	return &ListingHandler{queries: queries}
}

func serveList[T any](h *ListingHandler, c *gin.Context, admin bool, list listFunc[T]) {
	var (
		filter appledger.ListFilter
		ok     bool
	)
	if admin {
		ok = h.BindQuery(c, &filter)
	} else {
		filter, ok = h.memberFilter(c)
	}
	if !ok {
		return
	}
	page, err := list(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// MyInvestments handles GET /investments
func (h *ListingHandler) MyInvestments(c *gin.Context) {
	serveList(h, c, false, h.queries.ListInvestments)
}

// MyPayments handles GET /payments
func (h *ListingHandler) MyPayments(c *gin.Context) {
	serveList(h, c, false, h.queries.ListPayments)
}

// MyReturns handles GET /returns
func (h *ListingHandler) MyReturns(c *gin.Context) {
	serveList(h, c, false, h.queries.ListReturns)
}

// MyROI handles GET /roi
func (h *ListingHandler) MyROI(c *gin.Context) {
	serveList(h, c, false, h.queries.ListROI)
}

// AllInvestments handles GET /admin/investments
func (h *ListingHandler) AllInvestments(c *gin.Context) {
	serveList(h, c, true, h.queries.ListInvestments)
}

// AllPayments handles GET /admin/payments
func (h *ListingHandler) AllPayments(c *gin.Context) {
	serveList(h, c, true, h.queries.ListPayments)
}

// AllReturns handles GET /admin/returns
func (h *ListingHandler) AllReturns(c *gin.Context) {
	serveList(h, c, true, h.queries.ListReturns)
}

// AllROI handles GET /admin/roi
func (h *ListingHandler) AllROI(c *gin.Context) {
	serveList(h, c, true, h.queries.ListROI)
}

// Dashboard handles GET /admin/dashboard
func (h *ListingHandler) Dashboard(c *gin.Context) {
	stats, err := h.queries.DashboardStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
