package notification

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type stubProfiles struct {
	appledger.ProfileStore
	members map[string]*ledger.Member
}

func (s stubProfiles) GetUser(_ context.Context, userID string) (*ledger.Member, error) {
	m, ok := s.members[userID]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}
	return m, nil
}

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func profiles() stubProfiles {
	return stubProfiles{members: map[string]*ledger.Member{
		"u1": {UserID: "u1", Name: "Amal Haddad", Email: "amal@example.com"},
		"u2": {UserID: "u2", Name: "No Mail"},
	}}
}

func payoutNote(userID string) appledger.Notification {
	return appledger.Notification{
		PaymentID:     uuid.New(),
		Reference:     "ROI-u1-1760000000000-a1b2c3",
		Amount:        decimal.NewFromInt(40),
		Currency:      "AED",
		UserID:        userID,
		Description:   "ROI payout for Gold",
		PayoutDetails: "Bank transfer: Emirates NBD, Amal Haddad, account ******5678",
	}
}

func TestEmailNotifier_Notify(t *testing.T) {
	sender := &captureSender{}
	n := NewEmailNotifierWithSender(sender, "ledger@primebond.example", "ops@primebond.example", profiles(), nil)

	require.NoError(t, n.Notify(context.Background(), payoutNote("u1")))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"amal@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"ops@primebond.example"}, msg.GetHeader("Bcc"))
	assert.Equal(t, []string{"ROI payout for Gold"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "40.00 AED")
	assert.Contains(t, buf.String(), "Emirates NBD")
}

func TestEmailNotifier_Failures(t *testing.T) {
	t.Run("unknown member", func(t *testing.T) {
		n := NewEmailNotifierWithSender(&captureSender{}, "from@x", "", profiles(), nil)
		err := n.Notify(context.Background(), payoutNote("ghost"))
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("member without email", func(t *testing.T) {
		n := NewEmailNotifierWithSender(&captureSender{}, "from@x", "", profiles(), nil)
		err := n.Notify(context.Background(), payoutNote("u2"))
		assert.True(t, shared.IsExternalService(err))
	})

	t.Run("smtp error", func(t *testing.T) {
		n := NewEmailNotifierWithSender(&captureSender{err: errors.New("535 auth failed")}, "from@x", "", profiles(), nil)
		err := n.Notify(context.Background(), payoutNote("u1"))
		require.Error(t, err)
		assert.True(t, shared.IsExternalService(err))
		assert.Equal(t, ledger.ReasonNotificationFailed, shared.ReasonOf(err))
	})
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"40":         "40.00",
		"2000":       "2,000.00",
		"12345.5":    "12,345.50",
		"1250000.07": "1,250,000.07",
		"-75.5":      "-75.50",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatAmount(decimal.RequireFromString(in)), in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Amal Haddad", displayName("amal haddad"))
	assert.Equal(t, "Member", displayName("  "))
}
