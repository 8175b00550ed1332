package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/event"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func completedEvent() *ledger.InvestmentCompletedEvent {
	inv := &ledger.Investment{OwnedAggregateRoot: shared.NewOwnedAggregateRoot("u7"), PayoutsMade: 12}
	return ledger.NewInvestmentCompletedEvent(inv)
}

func TestEventPublisher_Handle(t *testing.T) {
	w := new(mockWriter)
	var written []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	p := NewEventPublisherWithWriter(w, "ledger.events", nil)
	evt := completedEvent()
	require.NoError(t, p.Handle(context.Background(), evt))

	require.Len(t, written, 1)
	msg := written[0]
	assert.Equal(t, "u7", string(msg.Key))
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, ledger.EventTypeInvestmentCompleted, headers["event_type"])
	assert.Equal(t, evt.EventID().String(), headers["event_id"])

	var env event.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, ledger.EventTypeInvestmentCompleted, env.Type)
	assert.Equal(t, "Investment", env.AggregateType)

	decoded, err := event.NewLedgerSerializer().Unmarshal(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, 12, decoded.(*ledger.InvestmentCompletedEvent).PayoutsMade)

	sent, failed := p.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(0), failed)
	assert.Nil(t, p.EventTypes())
	w.AssertExpectations(t)
}

func TestEventPublisher_WriteFailure(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))
	w.On("Close").Return(nil).Once()

	p := NewEventPublisherWithWriter(w, "ledger.events", nil)
	err := p.Handle(context.Background(), completedEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.events")

	_, failed := p.Stats()
	assert.Equal(t, int64(1), failed)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Handle(context.Background(), completedEvent()), ErrPublisherClosed)
	w.AssertExpectations(t)
}

func TestNewEventPublisher_Validation(t *testing.T) {
	_, err := NewEventPublisher(Config{Topic: "ledger.events"}, nil)
	assert.Error(t, err)
	_, err = NewEventPublisher(Config{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)

	p, err := NewEventPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "ledger.events", Acks: "one"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ledger.events", p.topic)
	require.NoError(t, p.Close())
	assert.Equal(t, kafka.RequireOne, requiredAcks("one"))
	assert.Equal(t, kafka.RequireAll, requiredAcks(""))
	assert.Equal(t, kafka.RequireNone, requiredAcks("none"))
}
