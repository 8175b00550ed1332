package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if h.panics {
		panic("handler bug")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, evt)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func settledEvent() *ledger.ReturnSettledEvent {
	paymentID := uuid.New()
	return ledger.NewReturnSettledEvent(&ledger.Return{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot("u1"),
		InvestmentID:       uuid.New(),
		Amount:             decimal.NewFromInt(40),
		PaymentID:          &paymentID,
		PayoutDate:         time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC),
	})
}

func TestInMemoryEventBus_Routing(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	settled := &recordingHandler{types: []string{ledger.EventTypeReturnSettled}}
	everything := &recordingHandler{}
	explicit := &recordingHandler{}
	bus.Subscribe(settled)
	bus.Subscribe(everything)
	bus.Subscribe(explicit, ledger.EventTypePaymentFailed)

	require.NoError(t, bus.Publish(ctx, settledEvent()))
	assert.Equal(t, 1, settled.count())
	assert.Equal(t, 1, everything.count())
	assert.Equal(t, 0, explicit.count())

	bus.Unsubscribe(settled)
	require.NoError(t, bus.Publish(ctx, settledEvent()))
	assert.Equal(t, 1, settled.count())
	assert.Equal(t, 2, everything.count())
}

func TestInMemoryEventBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	ctx := context.Background()

	bus.Subscribe(&recordingHandler{panics: true})
	bus.Subscribe(&recordingHandler{err: errors.New("broker down")})
	last := &recordingHandler{}
	bus.Subscribe(last)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, settledEvent(), settledEvent()))
	assert.Equal(t, 2, last.count())
	require.NoError(t, bus.Stop(ctx))
}

func TestSerializer_RoundTrip(t *testing.T) {
	s := NewLedgerSerializer()
	evt := settledEvent()

	data, err := s.Marshal(evt)
	require.NoError(t, err)

	decoded, err := s.Unmarshal(data)
	require.NoError(t, err)
	got, ok := decoded.(*ledger.ReturnSettledEvent)
	require.True(t, ok)
	assert.Equal(t, evt.EventID(), got.EventID())
	assert.Equal(t, "u1", got.UserID())
	assert.Equal(t, evt.InvestmentID, got.InvestmentID)
	assert.True(t, decimal.NewFromInt(40).Equal(got.Amount))
	assert.Equal(t, *evt.PaymentID, *got.PaymentID)

	_, err = NewSerializer().Unmarshal(data)
	assert.Error(t, err)
	_, err = s.Unmarshal([]byte("not json"))
	assert.Error(t, err)
}
