package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingPayment(t *testing.T) {
	invID := uuid.New()

	p, err := NewPendingPayment("user-42", decimal.NewFromInt(2000), "", PaymentMethodCard, PaymentTypeInvestment, &invID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, p.Status)
	assert.Equal(t, valueobject.AED, p.Currency)
	assert.True(t, strings.HasPrefix(p.Reference, "INV-USER42-"), p.Reference)

	tests := []struct {
		name   string
		amount decimal.Decimal
		method PaymentMethod
		typ    PaymentType
		invID  *uuid.UUID
	}{
		{"zero amount", decimal.Zero, PaymentMethodBank, PaymentTypeRegistration, nil},
		{"unknown method", decimal.NewFromInt(50), "paypal", PaymentTypeRegistration, nil},
		{"unknown type", decimal.NewFromInt(50), PaymentMethodBank, "donation", nil},
		{"investment without id", decimal.NewFromInt(50), PaymentMethodBank, PaymentTypeInvestment, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPendingPayment("user-42", tt.amount, valueobject.AED, tt.method, tt.typ, tt.invID)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestGenerateReference_Unique(t *testing.T) {
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref := GenerateReference(PaymentTypeRegistration, "user", at)
		assert.True(t, strings.HasPrefix(ref, "REG-USER-"))
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestPayment_ValidateGatewayAssertion(t *testing.T) {
	p, err := NewPendingPayment("u", decimal.RequireFromString("50.00"), valueobject.AED, PaymentMethodCard, PaymentTypeRegistration, nil)
	require.NoError(t, err)

	assert.NoError(t, p.ValidateGatewayAssertion(decimal.NewFromInt(50), "aed"))
	assert.NoError(t, p.ValidateGatewayAssertion(decimal.NewFromInt(50), ""))
	assert.Equal(t, ReasonAmountMismatch, shared.ReasonOf(p.ValidateGatewayAssertion(decimal.NewFromInt(49), "AED")))
	assert.Equal(t, ReasonCurrencyMismatch, shared.ReasonOf(p.ValidateGatewayAssertion(decimal.NewFromInt(50), "USD")))
	assert.Equal(t, PaymentStatusPending, p.Status)
}

func TestPayment_MarkConfirmedOnce(t *testing.T) {
	p, err := NewPendingPayment("u", decimal.NewFromInt(50), valueobject.AED, PaymentMethodCash, PaymentTypeRegistration, nil)
	require.NoError(t, err)

	require.NoError(t, p.MarkConfirmed(time.Now()))
	assert.Equal(t, PaymentStatusSuccess, p.Status)
	assert.NotNil(t, p.ConfirmedAt)
	assert.Error(t, p.MarkConfirmed(time.Now()))
	assert.Error(t, p.MarkFailed("late", time.Now()))
	assert.Len(t, p.GetDomainEvents(), 1)
}

func TestNewSettlementPayment(t *testing.T) {
	p, err := NewSettlementPayment("u", uuid.New(), decimal.NewFromInt(40), valueobject.AED, PaymentMethodBank, "ROI payout for Silver", time.Now())
	require.NoError(t, err)
	assert.Equal(t, PaymentTypeROI, p.Type)
	assert.Equal(t, PaymentStatusSuccess, p.Status)
	assert.True(t, strings.HasPrefix(p.Reference, "ROI-"))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("walletcrypto")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCrypto, m)

	m, err = ParsePaymentMethod("Bank_Transfer")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodBank, m)

	_, err = ParsePaymentMethod("cheque")
	assert.Error(t, err)
}
