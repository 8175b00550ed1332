package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/primebond/ledger/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentLedgerConfig holds settings and optional collaborators of PaymentLedger
type PaymentLedgerConfig struct {
	Settings Settings
	// Gateway starts hosted checkouts for card and crypto payments. Without
	// it those payments stay pending until confirmed manually.
	Gateway Gateway
	// Notifier sends receipts after confirmation
	Notifier Notifier
	// Idempotency filters duplicate gateway callback deliveries
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Events         shared.EventPublisher
	Metrics        Metrics
	Logger         *zap.Logger
	Clock          Clock
}

// PaymentLedger records payment attempts and confirmations. Confirmation is
// a conditional pending->success update, so each payment triggers its side
// effects at most once no matter how often it is confirmed.
type PaymentLedger struct {
	scope       TransactionScope
	payments    ledger.PaymentRepository
	investments ledger.InvestmentRepository
	profiles    ProfileStore
	manager     *InvestmentManager
	engine      *ledger.AccrualEngine

	settings       Settings
	gateway        Gateway
	notifier       Notifier
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	events         shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	now            Clock
}

// NewPaymentLedger creates a new PaymentLedger
func NewPaymentLedger(
	scope TransactionScope,
	payments ledger.PaymentRepository,
	investments ledger.InvestmentRepository,
	profiles ProfileStore,
	manager *InvestmentManager,
	cfg PaymentLedgerConfig,
) *PaymentLedger {
	l := &PaymentLedger{
		scope:          scope,
		payments:       payments,
		investments:    investments,
		profiles:       profiles,
		manager:        manager,
		engine:         ledger.NewAccrualEngine(),
		settings:       cfg.Settings.withDefaults(),
		gateway:        cfg.Gateway,
		notifier:       cfg.Notifier,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		events:         cfg.Events,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		now:            cfg.Clock,
	}
	if l.notifier == nil {
		l.notifier = noopNotifier{}
	}
	if l.idempotencyTTL <= 0 {
		l.idempotencyTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if l.metrics == nil {
		l.metrics = noopMetrics{}
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.now == nil {
		l.now = shared.Now
	}
	return l
}

// OpenPending creates a pending payment. Registration payments use the
// configured fee and investment payments use the pending investment's
// amount; only one successful payment of each kind is allowed per member.
func (l *PaymentLedger) OpenPending(ctx context.Context, req OpenPaymentRequest) (*PaymentResponse, error) {
	typ := ledger.PaymentType(strings.ToLower(strings.TrimSpace(req.Type)))
	if typ != ledger.PaymentTypeRegistration && typ != ledger.PaymentTypeInvestment {
		return nil, shared.NewValidationError(ledger.ReasonInvalidPaymentType,
			fmt.Sprintf("cannot open a %q payment; roi payments are recorded by settlement", req.Type))
	}
	method, err := ledger.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, err
	}
	currency := l.settings.Currency
	if req.Currency != "" {
		if currency, err = valueobject.ParseCurrency(req.Currency); err != nil {
			return nil, shared.NewValidationError(ledger.ReasonCurrencyMismatch, err.Error())
		}
	}
	if _, err := l.profiles.GetUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	var (
		amount       decimal.Decimal
		investmentID *uuid.UUID
		description  string
	)
	switch typ {
	case ledger.PaymentTypeRegistration:
		paid, err := l.profiles.HasSuccessfulRegistrationPayment(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if paid {
			return nil, ledger.ErrRegistrationAlreadyPaid
		}
		amount = l.settings.RegistrationFee
		description = "Membership registration fee"
	case ledger.PaymentTypeInvestment:
		paid, err := l.payments.ExistsSuccessful(ctx, req.UserID, ledger.PaymentTypeInvestment)
		if err != nil {
			return nil, fmt.Errorf("check investment payment: %w", err)
		}
		if paid {
			return nil, ledger.ErrInvestmentAlreadyPaid
		}
		inv, err := l.pendingInvestment(ctx, req.UserID, req.InvestmentID)
		if err != nil {
			return nil, err
		}
		amount = inv.Amount
		id := inv.ID
		investmentID = &id
		description = "Investment in " + inv.PlanName
	}

	p, err := ledger.NewPendingPayment(req.UserID, amount, currency, method, typ, investmentID)
	if err != nil {
		return nil, err
	}
	p.Description = description
	if err := l.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	l.metrics.PaymentOpened(typ, method)
	l.logger.Info("Payment opened",
		zap.String("reference", p.Reference),
		zap.String("user_id", p.UserID),
		zap.String("type", typ.String()),
		zap.String("method", method.String()),
		zap.String("amount", p.Amount.String()))

	if method.UsesGateway() && l.gateway != nil {
		if err := l.startCheckout(ctx, p); err != nil {
			return nil, err
		}
	}

	resp := ToPaymentResponse(p)
	return &resp, nil
}

func (l *PaymentLedger) pendingInvestment(ctx context.Context, userID string, id *uuid.UUID) (*ledger.Investment, error) {
	var (
		inv *ledger.Investment
		err error
	)
	if id != nil {
		inv, err = l.investments.FindByID(ctx, *id)
	} else {
		inv, err = l.investments.FindPendingByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if inv == nil || !inv.IsOwnedBy(userID) {
		if id != nil {
			return nil, ledger.ErrInvestmentNotFound
		}
		return nil, shared.NewPreconditionError(ledger.ReasonNoPendingInvestment, "select a plan before paying for an investment")
	}
	if inv.Status != ledger.InvestmentStatusPending {
		return nil, shared.NewPreconditionError(ledger.ReasonNoPendingInvestment,
			fmt.Sprintf("investment is %s and cannot be paid", inv.Status))
	}
	return inv, nil
}

// startCheckout asks the gateway for a checkout session. On failure the
// pending payment is marked failed so it can never be confirmed.
func (l *PaymentLedger) startCheckout(ctx context.Context, p *ledger.Payment) error {
	session, err := l.gateway.CreateCheckout(ctx, CheckoutRequest{
		Reference:   p.Reference,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Currency:    string(p.Currency),
		Method:      p.Method,
		Description: p.Description,
	})
	if err != nil {
		l.logger.Error("Payment gateway checkout failed",
			zap.String("reference", p.Reference),
			zap.Error(err))
		if _, ferr := l.fail(ctx, p, "gateway checkout failed"); ferr != nil {
			l.logger.Error("Failed to mark payment failed after gateway error",
				zap.String("reference", p.Reference),
				zap.Error(ferr))
		}
		return shared.NewExternalServiceError(ledger.ReasonGatewayUnavailable, "payment gateway is unavailable", err)
	}
	if err := l.payments.UpdateCheckout(ctx, p.ID, session.URL, session.GatewayTxnID); err != nil {
		return fmt.Errorf("store checkout session: %w", err)
	}
	p.CheckoutURL = session.URL
	p.GatewayTxnID = session.GatewayTxnID
	return nil
}

// ConfirmPayment dispatches to Confirm when a reference is given and to
// ConfirmByQuery otherwise.
func (l *PaymentLedger) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*ConfirmResult, error) {
	if strings.TrimSpace(req.Reference) != "" {
		return l.Confirm(ctx, req.Reference)
	}
	if req.UserID == "" || req.Type == "" || req.Method == "" {
		return nil, shared.NewValidationError(ledger.ReasonPaymentNotFound, "reference or user, type and method are required")
	}
	method, err := ledger.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, err
	}
	typ := ledger.PaymentType(strings.ToLower(req.Type))
	if !typ.IsValid() {
		return nil, shared.NewValidationError(ledger.ReasonInvalidPaymentType, fmt.Sprintf("unsupported payment type %q", req.Type))
	}
	return l.ConfirmByQuery(ctx, req.UserID, typ, method)
}

// Confirm confirms the payment with the given reference
func (l *PaymentLedger) Confirm(ctx context.Context, reference string) (*ConfirmResult, error) {
	p, err := l.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return nil, ledger.ErrPaymentNotFound
	}
	return l.confirm(ctx, p, nil)
}

// ConfirmByQuery confirms the latest pending payment for (user, type,
// method). It is the manual path for bank and cash payments, which carry no
// gateway reference. When only a successful payment matches, the result is
// AlreadyConfirmed.
func (l *PaymentLedger) ConfirmByQuery(ctx context.Context, userID string, typ ledger.PaymentType, method ledger.PaymentMethod) (*ConfirmResult, error) {
	p, err := l.payments.FindLatest(ctx, userID, typ, method, ledger.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("load pending payment: %w", err)
	}
	if p == nil {
		done, err := l.payments.FindLatest(ctx, userID, typ, method, ledger.PaymentStatusSuccess)
		if err != nil {
			return nil, fmt.Errorf("load confirmed payment: %w", err)
		}
		if done == nil {
			return nil, ledger.ErrPaymentNotFound
		}
		l.metrics.PaymentConfirmed(typ, OutcomeAlreadyConfirmed)
		return &ConfirmResult{Payment: ToPaymentResponse(done), AlreadyConfirmed: true}, nil
	}
	return l.confirm(ctx, p, nil)
}

// HandleGatewayCallback applies an asynchronous gateway notification.
// Success confirms the payment after checking amount and currency; failure
// statuses mark a pending payment failed; anything else is ignored.
func (l *PaymentLedger) HandleGatewayCallback(ctx context.Context, cb GatewayCallback) (*ConfirmResult, error) {
	status := strings.ToLower(strings.TrimSpace(cb.Status))
	key := fmt.Sprintf("payment:%s:%s", cb.Reference, status)

	if l.idempotency != nil {
		fresh, err := l.idempotency.MarkProcessed(ctx, key, l.idempotencyTTL)
		if err != nil {
			l.logger.Warn("Callback idempotency check failed, relying on status guard",
				zap.String("reference", cb.Reference),
				zap.Error(err))
		} else if !fresh {
			l.logger.Info("Duplicate gateway callback ignored",
				zap.String("reference", cb.Reference),
				zap.String("status", status))
			p, err := l.payments.FindByReference(ctx, cb.Reference)
			if err != nil {
				return nil, fmt.Errorf("load payment: %w", err)
			}
			if p == nil {
				return nil, ledger.ErrPaymentNotFound
			}
			return &ConfirmResult{
				Payment:          ToPaymentResponse(p),
				AlreadyConfirmed: p.Status == ledger.PaymentStatusSuccess,
				Duplicate:        true,
			}, nil
		}
	}

	result, err := l.applyCallback(ctx, status, cb)
	if err != nil && l.idempotency != nil {
		if ferr := l.idempotency.Forget(ctx, key); ferr != nil {
			l.logger.Warn("Failed to release callback idempotency key",
				zap.String("key", key),
				zap.Error(ferr))
		}
	}
	return result, err
}

func (l *PaymentLedger) applyCallback(ctx context.Context, status string, cb GatewayCallback) (*ConfirmResult, error) {
	p, err := l.payments.FindByReference(ctx, cb.Reference)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return nil, ledger.ErrPaymentNotFound
	}

	switch status {
	case "success", "succeeded", "paid", "completed":
		return l.confirm(ctx, p, &cb)
	case "failed", "declined", "cancelled", "canceled", "expired":
		reason := cb.Reason
		if reason == "" {
			reason = "gateway reported " + status
		}
		return l.fail(ctx, p, reason)
	default:
		l.logger.Info("Gateway callback status ignored",
			zap.String("reference", cb.Reference),
			zap.String("status", status))
		return &ConfirmResult{Payment: ToPaymentResponse(p)}, nil
	}
}

// confirm runs the pending->success transition and its side effects in one
// transaction. A caller that loses the race observes AlreadyConfirmed.
func (l *PaymentLedger) confirm(ctx context.Context, p *ledger.Payment, cb *GatewayCallback) (*ConfirmResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "confirm",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentRef, p.Reference),
		telemetry.WithAttribute(telemetry.SpanAttrUserID, p.UserID),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, p.Amount.String()),
	)
	defer span.End()

	res, err := l.confirmTx(ctx, p, cb)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "payment.already_confirmed", res.AlreadyConfirmed)
	return res, nil
}

func (l *PaymentLedger) confirmTx(ctx context.Context, p *ledger.Payment, cb *GatewayCallback) (*ConfirmResult, error) {
	switch p.Status {
	case ledger.PaymentStatusSuccess:
		l.metrics.PaymentConfirmed(p.Type, OutcomeAlreadyConfirmed)
		return &ConfirmResult{Payment: ToPaymentResponse(p), AlreadyConfirmed: true}, nil
	case ledger.PaymentStatusFailed:
		l.metrics.PaymentConfirmed(p.Type, OutcomeConflict)
		return nil, shared.NewConflictError(ledger.ReasonPaymentNotPending, "payment has failed and cannot be confirmed")
	}
	if cb != nil {
		if err := p.ValidateGatewayAssertion(cb.Amount, cb.Currency); err != nil {
			l.metrics.PaymentConfirmed(p.Type, OutcomeRejected)
			l.logger.Warn("Gateway assertion rejected",
				zap.String("reference", p.Reference),
				zap.String("gateway_amount", cb.Amount.String()),
				zap.String("gateway_currency", cb.Currency),
				zap.Error(err))
			return nil, err
		}
	}

	now := l.now()
	result := &ConfirmResult{}
	var (
		already bool
		sources []eventSource
		inv     *ledger.Investment
	)
	err := l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		ok, err := repos.Payments().TransitionStatus(ctx, p.ID, ledger.PaymentStatusPending, ledger.PaymentStatusSuccess, now, "")
		if err != nil {
			return fmt.Errorf("confirm payment: %w", err)
		}
		if !ok {
			current, err := repos.Payments().FindByID(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("reload payment: %w", err)
			}
			if current != nil && current.Status == ledger.PaymentStatusSuccess {
				already = true
				p = current
				return nil
			}
			return shared.NewConflictError(ledger.ReasonPaymentNotPending, "payment is no longer pending")
		}
		if err := p.MarkConfirmed(now); err != nil {
			return err
		}
		sources = append(sources, p)
		if cb != nil && cb.GatewayTxnID != "" {
			if err := repos.Payments().UpdateCheckout(ctx, p.ID, p.CheckoutURL, cb.GatewayTxnID); err != nil {
				return fmt.Errorf("store gateway transaction: %w", err)
			}
			p.GatewayTxnID = cb.GatewayTxnID
		}

		switch p.Type {
		case ledger.PaymentTypeRegistration:
			member, err := l.completeRegistration(ctx, repos, p)
			if err != nil {
				return err
			}
			result.MemberNumber = member.MemberNumber
			sources = append(sources, member)
		case ledger.PaymentTypeInvestment:
			var ret *ledger.Return
			inv, ret, err = l.activateInvestment(ctx, repos, p, now)
			if err != nil {
				return err
			}
			id := inv.ID
			result.InvestmentID = &id
			result.FirstReturnID = returnIDPtr(ret)
			sources = append(sources, inv, ret)
		case ledger.PaymentTypeROI:
			// audit record only
		}
		return nil
	})
	if err != nil {
		l.metrics.PaymentConfirmed(p.Type, OutcomeError)
		return nil, err
	}

	result.Payment = ToPaymentResponse(p)
	if already {
		result.AlreadyConfirmed = true
		l.metrics.PaymentConfirmed(p.Type, OutcomeAlreadyConfirmed)
		l.logger.Info("Payment already confirmed",
			zap.String("reference", p.Reference),
			zap.String("user_id", p.UserID))
		return result, nil
	}

	l.metrics.PaymentConfirmed(p.Type, OutcomeSuccess)
	l.logger.Info("Payment confirmed",
		zap.String("reference", p.Reference),
		zap.String("user_id", p.UserID),
		zap.String("type", p.Type.String()),
		zap.String("amount", p.Amount.String()),
		zap.String("member_number", result.MemberNumber))

	publishEvents(ctx, l.events, l.logger, sources...)
	l.notify(ctx, Notification{
		PaymentID:   p.ID,
		Reference:   p.Reference,
		Amount:      p.Amount,
		Currency:    string(p.Currency),
		UserID:      p.UserID,
		Description: confirmationDescription(p, inv),
	})
	return result, nil
}

// completeRegistration assigns the member number on the first confirmed
// registration fee. Later confirmations keep the existing number.
func (l *PaymentLedger) completeRegistration(ctx context.Context, repos TransactionalRepositories, p *ledger.Payment) (*ledger.Member, error) {
	number, assigned, err := repos.Members().AssignMemberNumber(ctx, p.UserID, l.settings.MemberNumberPrefix)
	if err != nil {
		return nil, fmt.Errorf("assign member number: %w", err)
	}
	member, err := repos.Members().FindByUserID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if member == nil {
		return nil, ledger.ErrUserNotFound
	}
	member.MemberNumber = number
	if assigned {
		member.AddDomainEvent(ledger.NewMemberNumberAssignedEvent(member))
	}
	return member, nil
}

// activateInvestment activates the paid investment, snapshots its rate into
// the ROI record and schedules the first return.
func (l *PaymentLedger) activateInvestment(ctx context.Context, repos TransactionalRepositories, p *ledger.Payment, now time.Time) (*ledger.Investment, *ledger.Return, error) {
	if p.InvestmentID == nil {
		return nil, nil, shared.NewValidationError(ledger.ReasonInvalidPaymentType, "investment payment has no investment")
	}
	inv, err := l.manager.activateIn(ctx, repos, *p.InvestmentID, now)
	if err != nil {
		return nil, nil, err
	}
	if !inv.IsOwnedBy(p.UserID) {
		return nil, nil, ledger.ErrInvestmentNotFound
	}

	plan, err := repos.Plans().FindByID(ctx, inv.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("load plan: %w", err)
	}
	snap, err := l.engine.Snapshot(inv.Amount, plan, inv.Cadence)
	if err != nil {
		return nil, nil, err
	}
	roi, _, err := repos.ROIs().CreateIfAbsent(ctx, ledger.NewROI(inv, snap, p.Currency))
	if err != nil {
		return nil, nil, fmt.Errorf("create ROI: %w", err)
	}

	ret, _, err := scheduleReturn(ctx, repos, inv, roi, *inv.NextPayoutDate)
	if err != nil {
		return nil, nil, err
	}
	return inv, ret, nil
}

// fail marks a pending payment failed. Payments that already left pending
// are returned unchanged.
func (l *PaymentLedger) fail(ctx context.Context, p *ledger.Payment, reason string) (*ConfirmResult, error) {
	if p.Status != ledger.PaymentStatusPending {
		return &ConfirmResult{Payment: ToPaymentResponse(p), AlreadyConfirmed: p.Status == ledger.PaymentStatusSuccess}, nil
	}
	now := l.now()
	ok, err := l.payments.TransitionStatus(ctx, p.ID, ledger.PaymentStatusPending, ledger.PaymentStatusFailed, now, reason)
	if err != nil {
		return nil, fmt.Errorf("fail payment: %w", err)
	}
	if !ok {
		current, err := l.payments.FindByID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("reload payment: %w", err)
		}
		if current == nil {
			return nil, ledger.ErrPaymentNotFound
		}
		return &ConfirmResult{Payment: ToPaymentResponse(current), AlreadyConfirmed: current.Status == ledger.PaymentStatusSuccess}, nil
	}
	if err := p.MarkFailed(reason, now); err != nil {
		return nil, err
	}
	l.metrics.PaymentConfirmed(p.Type, OutcomeFailed)
	l.logger.Info("Payment failed",
		zap.String("reference", p.Reference),
		zap.String("reason", reason))
	publishEvents(ctx, l.events, l.logger, p)
	return &ConfirmResult{Payment: ToPaymentResponse(p)}, nil
}

func (l *PaymentLedger) notify(ctx context.Context, n Notification) {
	if err := l.notifier.Notify(ctx, n); err != nil {
		l.logger.Warn("Payment notification failed",
			zap.String("payment_id", n.PaymentID.String()),
			zap.String("user_id", n.UserID),
			zap.String("reason", ledger.ReasonNotificationFailed),
			zap.Error(err))
	}
}

func confirmationDescription(p *ledger.Payment, inv *ledger.Investment) string {
	switch {
	case p.Description != "":
		return p.Description
	case p.Type == ledger.PaymentTypeRegistration:
		return "Membership registration fee"
	case inv != nil:
		return "Investment in " + inv.PlanName
	default:
		return fmt.Sprintf("%s payment %s", p.Type, p.Reference)
	}
}
