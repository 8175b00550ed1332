// Package kafka forwards committed ledger domain events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/primebond/ledger/internal/domain/shared"
	"github.com/primebond/ledger/internal/infrastructure/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrPublisherClosed is returned after Close
var ErrPublisherClosed = errors.New("kafka publisher closed")

// Config holds the publisher settings
type Config struct {
	Brokers []string
	Topic   string
	// Acks: none, one, all
	Acks         string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

// Writer is the subset of kafka.Writer the publisher uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher is an event bus handler that writes every event it
// receives to the configured topic, keyed by member so a member's events
// stay ordered within one partition.
type EventPublisher struct {
	writer     Writer
	topic      string
	serializer *event.Serializer
	logger     *zap.Logger
	closed     atomic.Bool
	sent       atomic.Int64
	failed     atomic.Int64
}

// NewEventPublisher creates a publisher backed by a kafka.Writer
func NewEventPublisher(cfg Config, logger *zap.Logger) (*EventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxAttempts,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           requiredAcks(cfg.Acks),
		AllowAutoTopicCreation: false,
	}
	return NewEventPublisherWithWriter(w, cfg.Topic, logger), nil
}

// NewEventPublisherWithWriter creates a publisher on an existing writer
func NewEventPublisherWithWriter(w Writer, topic string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{
		writer:     w,
		topic:      topic,
		serializer: event.NewLedgerSerializer(),
		logger:     logger.Named("kafka"),
	}
}

func requiredAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "none":
		return kafka.RequireNone
	case "one":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

// Handle implements shared.EventHandler
func (p *EventPublisher) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	value, err := p.serializer.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.UserID()),
		Value: value,
		Time:  evt.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType())},
			{Key: "event_id", Value: []byte(evt.EventID().String())},
			{Key: "aggregate_type", Value: []byte(evt.AggregateType())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("publish %s to %s: %w", evt.EventType(), p.topic, err)
	}
	p.sent.Add(1)
	p.logger.Debug("Event forwarded",
		zap.String("event_type", evt.EventType()),
		zap.String("aggregate_id", evt.AggregateID().String()))
	return nil
}

// EventTypes returns nil so the bus delivers every event
func (p *EventPublisher) EventTypes() []string { return nil }

// Stats returns the number of forwarded and failed events
func (p *EventPublisher) Stats() (sent, failed int64) {
	return p.sent.Load(), p.failed.Load()
}

// Close flushes and closes the writer
func (p *EventPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

var _ shared.EventHandler = (*EventPublisher)(nil)
