package event

import (
	"context"
	"fmt"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// Sink receives relayed outbox entries
type Sink interface {
	Name() string
	Deliver(ctx context.Context, entry *shared.OutboxEntry) error
}

// BusSink decodes entries and publishes them on the in-process bus
type BusSink struct {
	bus        shared.EventPublisher
	serializer *EventSerializer
}

// NewBusSink creates a sink that feeds the in-process event bus
func NewBusSink(bus shared.EventPublisher, serializer *EventSerializer) *BusSink {
	return &BusSink{bus: bus, serializer: serializer}
}

// Name implements Sink
func (s *BusSink) Name() string { return "bus" }

// Deliver implements Sink
func (s *BusSink) Deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := s.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, event)
}

// KafkaWriter is the subset of *kafka.Writer used by KafkaSink
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSinkConfig configures the Kafka relay
type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	// EventTypes limits the relay to these types; empty relays everything
	EventTypes []string
}

// KafkaSink writes entries to a Kafka topic keyed by aggregate ID, so events
// of one payout stay ordered within a partition.
type KafkaSink struct {
	writer KafkaWriter
	types  map[string]struct{}
}

// NewKafkaSink creates a sink backed by a kafka.Writer that waits for all
// in-sync replicas before acknowledging.
func NewKafkaSink(cfg KafkaSinkConfig) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewKafkaSinkWithWriter(writer, cfg.EventTypes...)
}

// NewKafkaSinkWithWriter creates a sink around an existing writer
func NewKafkaSinkWithWriter(writer KafkaWriter, eventTypes ...string) *KafkaSink {
	types := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}
	return &KafkaSink{writer: writer, types: types}
}

// Name implements Sink
func (s *KafkaSink) Name() string { return "kafka" }

// Deliver implements Sink
func (s *KafkaSink) Deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	if len(s.types) > 0 {
		if _, ok := s.types[entry.EventType]; !ok {
			return nil
		}
	}

	msg := kafka.Message{
		Key:   []byte(entry.PartitionKey()),
		Value: entry.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(entry.EventID.String())},
			{Key: "event_type", Value: []byte(entry.EventType)},
			{Key: "aggregate_type", Value: []byte(entry.AggregateType)},
		},
		Time: entry.CreatedAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", entry.EventType, err)
	}
	return nil
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

var (
	_ Sink = (*BusSink)(nil)
	_ Sink = (*KafkaSink)(nil)
)
