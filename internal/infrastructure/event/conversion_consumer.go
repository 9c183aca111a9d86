package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaReader is the subset of *kafka.Reader used by ConsumerGroup
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig configures an inbound Kafka consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// RetryBackoff is the pause before a failed message is fetched again
	RetryBackoff time.Duration
	// DeadLetterTopic receives messages the handler rejected for good.
	// Empty disables the copy; rejected messages are still committed.
	DeadLetterTopic string
	WriteTimeout    time.Duration
}

// ConversionConsumer reads conversion events from Kafka and hands them to a
// handler. Offsets are committed only after the handler succeeds, so
// infrastructure failures are redelivered; the handler is expected to be
// idempotent. A domain rejection (bad amount, bad rule) can never succeed:
// the message is copied to the dead-letter topic and committed so the
// partition keeps moving.
type ConversionConsumer struct {
	reader     KafkaReader
	deadLetter KafkaWriter
	handler    shared.EventHandler
	types      map[string]struct{}
	serializer *EventSerializer
	backoff    time.Duration
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConsumerOption configures a ConversionConsumer
type ConsumerOption func(*ConversionConsumer)

// WithDeadLetter sends rejected messages to w
func WithDeadLetter(w KafkaWriter) ConsumerOption {
	return func(c *ConversionConsumer) {
		c.deadLetter = w
	}
}

// NewConversionConsumer creates a consumer backed by a kafka.Reader in a consumer group
func NewConversionConsumer(cfg ConsumerConfig, handler shared.EventHandler, serializer *EventSerializer, logger *zap.Logger) *ConversionConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
	})
	var opts []ConsumerOption
	if cfg.DeadLetterTopic != "" {
		opts = append(opts, WithDeadLetter(&kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DeadLetterTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: cfg.WriteTimeout,
		}))
	}
	return NewConversionConsumerWithReader(reader, handler, serializer, cfg.RetryBackoff, logger, opts...)
}

// NewConversionConsumerWithReader creates a consumer around an existing reader
func NewConversionConsumerWithReader(reader KafkaReader, handler shared.EventHandler, serializer *EventSerializer, backoff time.Duration, logger *zap.Logger, opts ...ConsumerOption) *ConversionConsumer {
	if backoff <= 0 {
		backoff = time.Second
	}
	types := make(map[string]struct{})
	for _, t := range handler.EventTypes() {
		types[t] = struct{}{}
	}
	c := &ConversionConsumer{
		reader:     reader,
		handler:    handler,
		types:      types,
		serializer: serializer,
		backoff:    backoff,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins consuming in the background
func (c *ConversionConsumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()

	c.logger.Info("conversion consumer started")
	return nil
}

// Stop stops consuming and closes the reader
func (c *ConversionConsumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.logger.Info("conversion consumer stopped")
	if c.deadLetter != nil {
		if err := c.deadLetter.Close(); err != nil {
			c.logger.Warn("failed to close dead-letter writer", zap.Error(err))
		}
	}
	return c.reader.Close()
}

func (c *ConversionConsumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to fetch message", zap.Error(err))
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		// Retry the same message; fetching past it would skip the sale.
		// Only infrastructure errors get here.
		for {
			err := c.HandleMessage(ctx, msg)
			if err == nil {
				break
			}
			c.logger.Error("failed to handle message, will retry",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Error(err),
			)
			if !sleep(ctx, c.backoff) {
				return
			}
		}
	}
}

// HandleMessage decodes and handles one message, committing its offset on
// success. Messages that can never be decoded, carry an event type the
// handler does not take, or are rejected by the domain are logged and
// committed. Any other error leaves the offset uncommitted.
func (c *ConversionConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg, "event_type")
	if eventType == "" {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg.Value, &envelope); err == nil {
			eventType = envelope.Type
		}
	}

	event, err := c.serializer.Deserialize(eventType, msg.Value)
	if err != nil {
		c.logger.Warn("skipping undecodable message",
			zap.String("event_type", eventType),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return c.reader.CommitMessages(ctx, msg)
	}

	if _, ok := c.types[eventType]; !ok {
		c.logger.Warn("skipping message of unhandled type",
			zap.String("event_type", eventType),
			zap.Int64("offset", msg.Offset),
		)
		return c.reader.CommitMessages(ctx, msg)
	}

	if err := c.handler.Handle(ctx, event); err != nil {
		if !IsPermanent(err) {
			return fmt.Errorf("handle %s: %w", eventType, err)
		}
		if err := c.toDeadLetter(ctx, msg, err); err != nil {
			return err
		}
	}
	return c.reader.CommitMessages(ctx, msg)
}

func (c *ConversionConsumer) toDeadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	c.logger.Error("conversion rejected, moving to dead letter",
		zap.Int64("offset", msg.Offset),
		zap.Int("partition", msg.Partition),
		zap.Error(cause),
	)
	if c.deadLetter == nil {
		return nil
	}
	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dead_letter_reason", Value: []byte(cause.Error())},
		kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "source_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	if err := c.deadLetter.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("dead-letter write: %w", err)
	}
	return nil
}

// IsPermanent reports whether err is a domain rejection that no retry can
// fix. Concurrency conflicts are domain errors too but go away on retry.
func IsPermanent(err error) bool {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return !errors.Is(err, shared.ErrConcurrencyConflict)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
