package ledger

import "github.com/primebond/ledger/internal/domain/shared"

// Reason codes carried by ledger errors
const (
	ReasonInvalidAmount          = "INVALID_AMOUNT"
	ReasonAmountBelowMinimum     = "AMOUNT_BELOW_MINIMUM"
	ReasonAmountAboveMaximum     = "AMOUNT_ABOVE_MAXIMUM"
	ReasonInvalidCadence         = "INVALID_CADENCE"
	ReasonInvalidPlan            = "INVALID_PLAN"
	ReasonInvalidPaymentMethod   = "INVALID_PAYMENT_METHOD"
	ReasonInvalidPaymentType     = "INVALID_PAYMENT_TYPE"
	ReasonInvalidPayoutMethod    = "INVALID_PAYOUT_METHOD"
	ReasonInvalidKycStatus       = "INVALID_KYC_STATUS"
	ReasonAmountMismatch         = "GATEWAY_AMOUNT_MISMATCH"
	ReasonCurrencyMismatch       = "GATEWAY_CURRENCY_MISMATCH"
	ReasonPlanNotFound           = "PLAN_NOT_FOUND"
	ReasonPlanInactive           = "PLAN_INACTIVE"
	ReasonPlanNameTaken          = "PLAN_NAME_TAKEN"
	ReasonInvestmentNotFound     = "INVESTMENT_NOT_FOUND"
	ReasonPaymentNotFound        = "PAYMENT_NOT_FOUND"
	ReasonROINotFound            = "ROI_NOT_FOUND"
	ReasonReturnNotFound         = "RETURN_NOT_FOUND"
	ReasonUserNotFound           = "USER_NOT_FOUND"
	ReasonRegistrationPaid       = "REGISTRATION_ALREADY_PAID"
	ReasonInvestmentPaid         = "INVESTMENT_ALREADY_PAID"
	ReasonActiveInvestment       = "ACTIVE_INVESTMENT_EXISTS"
	ReasonPendingInvestment      = "PENDING_INVESTMENT_EXISTS"
	ReasonReturnAlreadyPaid      = "RETURN_ALREADY_PAID"
	ReasonInvalidTransition      = "INVALID_STATUS_TRANSITION"
	ReasonPaymentNotPending      = "PAYMENT_NOT_PENDING"
	ReasonRegistrationUnpaid     = "REGISTRATION_UNPAID"
	ReasonKycNotApproved         = "KYC_NOT_APPROVED"
	ReasonPayoutMethodUnset      = "PAYOUT_METHOD_UNSET"
	ReasonNoPendingInvestment    = "NO_PENDING_INVESTMENT"
	ReasonReturnMismatch         = "RETURN_INVESTMENT_MISMATCH"
	ReasonGatewayUnavailable     = "GATEWAY_UNAVAILABLE"
	ReasonNotificationFailed     = "NOTIFICATION_FAILED"
	ReasonInvestmentNotActive    = "INVESTMENT_NOT_ACTIVE"
	ReasonPayoutCountExceeded    = "PAYOUT_COUNT_EXCEEDED"
	ReasonInvalidMemberReference = "INVALID_MEMBER"
)

var (
	ErrPlanNotFound       = shared.NewNotFoundError(ReasonPlanNotFound, "investment plan not found")
	ErrInvestmentNotFound = shared.NewNotFoundError(ReasonInvestmentNotFound, "investment not found")
	ErrPaymentNotFound    = shared.NewNotFoundError(ReasonPaymentNotFound, "payment not found")
	ErrROINotFound        = shared.NewNotFoundError(ReasonROINotFound, "ROI record not found")
	ErrReturnNotFound     = shared.NewNotFoundError(ReasonReturnNotFound, "return not found")
	ErrUserNotFound       = shared.NewNotFoundError(ReasonUserNotFound, "user not found")

	ErrReturnAlreadyPaid       = shared.NewConflictError(ReasonReturnAlreadyPaid, "return already paid")
	ErrRegistrationAlreadyPaid = shared.NewConflictError(ReasonRegistrationPaid, "registration fee already paid")
	ErrInvestmentAlreadyPaid   = shared.NewConflictError(ReasonInvestmentPaid, "an investment payment has already been made")
	ErrActiveInvestmentExists  = shared.NewConflictError(ReasonActiveInvestment, "an active investment already exists")
	ErrPendingInvestmentExists = shared.NewConflictError(ReasonPendingInvestment, "a pending investment already exists")
	ErrPayoutsFullyScheduled   = shared.NewConflictError(ReasonPayoutCountExceeded, "every remaining payout is already scheduled")

	ErrRegistrationUnpaid = shared.NewPreconditionError(ReasonRegistrationUnpaid, "registration fee has not been paid")
	ErrKycNotApproved     = shared.NewPreconditionError(ReasonKycNotApproved, "KYC verification is not approved")
	ErrPayoutMethodUnset  = shared.NewPreconditionError(ReasonPayoutMethodUnset, "payout method is not configured")
)
