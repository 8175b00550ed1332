package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/primebond/ledger/internal/domain/shared"
)

// Envelope is the wire form of a domain event sent to downstream consumers
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	UserID        string          `json:"user_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Serializer converts domain events to envelopes and back. Decoding needs
// the concrete type registered under the event type name.
type Serializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewSerializer creates an empty serializer
func NewSerializer() *Serializer {
	return &Serializer{types: make(map[string]reflect.Type)}
}

// NewLedgerSerializer returns a serializer that knows every ledger event
func NewLedgerSerializer() *Serializer {
	s := NewSerializer()
	s.Register(ledger.EventTypeInvestmentSelected, &ledger.InvestmentSelectedEvent{})
	s.Register(ledger.EventTypeInvestmentActivated, &ledger.InvestmentActivatedEvent{})
	s.Register(ledger.EventTypeInvestmentCompleted, &ledger.InvestmentCompletedEvent{})
	s.Register(ledger.EventTypePaymentConfirmed, &ledger.PaymentConfirmedEvent{})
	s.Register(ledger.EventTypePaymentFailed, &ledger.PaymentFailedEvent{})
	s.Register(ledger.EventTypeReturnScheduled, &ledger.ReturnScheduledEvent{})
	s.Register(ledger.EventTypeReturnSettled, &ledger.ReturnSettledEvent{})
	s.Register(ledger.EventTypeMemberNumberAssigned, &ledger.MemberNumberAssignedEvent{})
	return s
}

// Register maps eventType to the concrete type of instance
func (s *Serializer) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.mu.Lock()
	s.types[eventType] = t
	s.mu.Unlock()
}

// Marshal encodes evt as an Envelope
func (s *Serializer) Marshal(evt shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", evt.EventType(), err)
	}
	return json.Marshal(Envelope{
		ID:            evt.EventID(),
		Type:          evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		UserID:        evt.UserID(),
		OccurredAt:    evt.OccurredAt(),
		Payload:       payload,
	})
}

// Unmarshal decodes an Envelope back into its registered event type
func (s *Serializer) Unmarshal(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	s.mu.RLock()
	t, ok := s.types[env.Type]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, ptr); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	evt, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return evt, nil
}
