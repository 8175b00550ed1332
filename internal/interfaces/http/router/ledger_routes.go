package router

import (
	"github.com/gin-gonic/gin"
	"github.com/primebond/ledger/internal/infrastructure/auth"
	"github.com/primebond/ledger/internal/interfaces/http/handler"
	"github.com/primebond/ledger/internal/interfaces/http/middleware"
)

// Handlers are the ledger API handlers. Callback is nil when no gateway
// callback secret is configured and Stripe is nil unless Stripe is the
// checkout provider; their routes are then not mounted.
type Handlers struct {
	Plans       *handler.PlanHandler
	Investments *handler.InvestmentHandler
	Payments    *handler.PaymentHandler
	Callback    *handler.CallbackHandler
	Stripe      *handler.StripeWebhookHandler
	Listings    *handler.ListingHandler
	Settlement  *handler.SettlementHandler
	Members     *handler.MemberHandler
}

// LedgerGroups builds the route groups of the ledger API. authn
// authenticates the bearer token; extra runs after it on every
// authenticated route (rate limiting).
func LedgerGroups(h Handlers, authn gin.HandlerFunc, extra ...gin.HandlerFunc) []RouteRegistrar {
	memberChain := append([]gin.HandlerFunc{authn, middleware.RequireRole(auth.RoleMember)}, extra...)
	adminChain := append([]gin.HandlerFunc{authn, middleware.RequireRole(auth.RoleAdmin)}, extra...)

	member := NewDomainGroup("member", "").Use(memberChain...).
		GET("/plans", h.Plans.List).
		GET("/plans/:id", h.Plans.Get).
		POST("/investments", h.Investments.Select).
		GET("/investments", h.Listings.MyInvestments).
		POST("/investments/:id/cancel", h.Investments.Cancel).
		POST("/payments", h.Payments.Open).
		GET("/payments", h.Listings.MyPayments).
		GET("/returns", h.Listings.MyReturns).
		GET("/roi", h.Listings.MyROI).
		GET("/members/me", h.Members.Me).
		PUT("/members/me/payout-method", h.Members.SetPayoutMethod)

	admin := NewDomainGroup("admin", "/admin").Use(adminChain...).
		POST("/plans", h.Plans.Create).
		GET("/investments", h.Listings.AllInvestments).
		GET("/payments", h.Listings.AllPayments).
		POST("/payments/confirm", h.Payments.Confirm).
		GET("/returns", h.Listings.AllReturns).
		POST("/returns/schedule", h.Settlement.SetPayout).
		GET("/roi", h.Listings.AllROI).
		POST("/withdrawals", h.Settlement.Withdraw).
		POST("/scheduler/tick", h.Settlement.RunTick).
		GET("/dashboard", h.Listings.Dashboard).
		POST("/members", h.Members.Register).
		PUT("/members/:userId/kyc", h.Members.SetKycStatus)

	groups := []RouteRegistrar{member, admin}
	if h.Callback != nil || h.Stripe != nil {
		gw := NewDomainGroup("gateway", "/payments")
		if h.Callback != nil {
			gw.POST("/callback", h.Callback.Handle)
		}
		if h.Stripe != nil {
			gw.POST("/stripe/webhook", h.Stripe.Handle)
		}
		groups = append(groups, gw)
	}
	return groups
}
