package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Classes(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  string
	}{
		{"validation", NewValidationError("AMOUNT_BELOW_MINIMUM", "too small"), IsValidation, CodeValidation},
		{"not found", NewNotFoundError("PLAN_NOT_FOUND", "missing"), IsNotFound, CodeNotFound},
		{"conflict", NewConflictError("RETURN_ALREADY_PAID", "paid"), IsConflict, CodeConflict},
		{"precondition", NewPreconditionError("KYC_NOT_APPROVED", "kyc"), IsPrecondition, CodePrecondition},
		{"external", NewExternalServiceError("GATEWAY_UNAVAILABLE", "gateway", errors.New("timeout")), IsExternalService, CodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.code, CodeOf(tt.err))

			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.True(t, tt.check(wrapped))
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err := NewConflictError("RETURN_ALREADY_PAID", "return already paid")

	assert.True(t, errors.Is(err, NewConflictError("RETURN_ALREADY_PAID", "")))
	assert.True(t, errors.Is(err, NewDomainError(CodeConflict, "")))
	assert.False(t, errors.Is(err, NewConflictError("PAYMENT_ALREADY_EXISTS", "")))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestDomainError_WithCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewExternalServiceError("NOTIFIER_FAILED", "notify", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "notify: dial tcp: refused", err.Error())
	assert.Equal(t, "NOTIFIER_FAILED", ReasonOf(err))
	assert.Empty(t, ReasonOf(errors.New("plain")))
}
