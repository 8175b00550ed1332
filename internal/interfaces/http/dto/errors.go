package dto

import (
	"net/http"

	"github.com/primebond/ledger/internal/domain/shared"
)

// Error code constants
// Format: ERR_<CATEGORY>
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"

	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
	ErrCodeForbidden     = "ERR_FORBIDDEN"
	ErrCodeTokenExpired  = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid  = "ERR_TOKEN_INVALID"
	ErrCodeBadSignature  = "ERR_BAD_SIGNATURE"
	ErrCodeRateLimited   = "ERR_RATE_LIMITED"
	ErrCodeTooLarge      = "ERR_REQUEST_TOO_LARGE"
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeConflict      = "ERR_CONFLICT"
	ErrCodeConcurrency   = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodePrecondition  = "ERR_PRECONDITION_FAILED"
	ErrCodeExternal      = "ERR_EXTERNAL_SERVICE"
	ErrCodeUnprocessable = "ERR_UNPROCESSABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Failed
// preconditions (unpaid registration, KYC, payout method) are business rule
// violations on a well-formed request and render as 422.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:       http.StatusInternalServerError,
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeTokenExpired:  http.StatusUnauthorized,
	ErrCodeTokenInvalid:  http.StatusUnauthorized,
	ErrCodeBadSignature:  http.StatusUnauthorized,
	ErrCodeForbidden:     http.StatusForbidden,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeConcurrency:   http.StatusConflict,
	ErrCodeTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodePrecondition:  http.StatusUnprocessableEntity,
	ErrCodeUnprocessable: http.StatusUnprocessableEntity,
	ErrCodeRateLimited:   http.StatusTooManyRequests,
	ErrCodeExternal:      http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping maps shared.DomainError classes to API error codes
var domainCodeMapping = map[string]string{
	shared.CodeValidation:      ErrCodeValidation,
	shared.CodeNotFound:        ErrCodeNotFound,
	shared.CodeConflict:        ErrCodeConflict,
	shared.CodePrecondition:    ErrCodePrecondition,
	shared.CodeExternalService: ErrCodeExternal,
	shared.CodeInvalidState:    ErrCodeInvalidState,
	shared.CodeConcurrency:     ErrCodeConcurrency,
	shared.CodeUnauthorized:    ErrCodeUnauthorized,
	shared.CodeForbidden:       ErrCodeForbidden,
}

// NormalizeErrorCode converts a domain error class to the API error code.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
