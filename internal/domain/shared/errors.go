package shared

import "errors"

// Error classes. Every DomainError carries one of these as its Code so callers
// and the HTTP layer can branch on the class while Reason stays specific.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodePrecondition    = "PRECONDITION_FAILED"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInvalidState    = "INVALID_STATE"
	CodeConcurrency     = "CONCURRENCY_CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError with the same code and reason.
// An empty reason on the target matches any reason of the same class.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// WithCause returns a copy of the error that wraps cause
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := *e
	cp.cause = cause
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewReasonedError creates a domain error with an explicit reason code
func NewReasonedError(code, reason, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

func NewValidationError(reason, message string) *DomainError {
	return NewReasonedError(CodeValidation, reason, message)
}

func NewNotFoundError(reason, message string) *DomainError {
	return NewReasonedError(CodeNotFound, reason, message)
}

func NewConflictError(reason, message string) *DomainError {
	return NewReasonedError(CodeConflict, reason, message)
}

func NewPreconditionError(reason, message string) *DomainError {
	return NewReasonedError(CodePrecondition, reason, message)
}

func NewExternalServiceError(reason, message string, cause error) *DomainError {
	return NewReasonedError(CodeExternalService, reason, message).WithCause(cause)
}

// CodeOf returns the class of err, or "" when err is not a DomainError
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ReasonOf returns the reason code of err, or "" when there is none
func ReasonOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

func IsValidation(err error) bool      { return CodeOf(err) == CodeValidation }
func IsNotFound(err error) bool        { return CodeOf(err) == CodeNotFound }
func IsConflict(err error) bool        { return CodeOf(err) == CodeConflict }
func IsPrecondition(err error) bool    { return CodeOf(err) == CodePrecondition }
func IsExternalService(err error) bool { return CodeOf(err) == CodeExternalService }

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)
