package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPConfig configures the RabbitMQ transport
type AMQPConfig struct {
	URL                string
	Exchange           string
	EmailRoutingKey    string
	WhatsAppRoutingKey string
}

// Publisher publishes one message and waits for the broker to confirm it
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
	Close() error
}

// AMQPSender publishes envelopes to a direct exchange, routed by channel.
// A send succeeds only once the broker confirmed the message.
type AMQPSender struct {
	cfg       AMQPConfig
	publisher Publisher
	logger    *zap.Logger
}

// NewAMQPSender dials RabbitMQ, declares the exchange and enables publisher confirms
func NewAMQPSender(cfg AMQPConfig, logger *zap.Logger) (*AMQPSender, error) {
	pub, err := dialChannel(cfg)
	if err != nil {
		return nil, err
	}
	return NewAMQPSenderWithPublisher(cfg, pub, logger), nil
}

// NewAMQPSenderWithPublisher creates a sender over an existing publisher
func NewAMQPSenderWithPublisher(cfg AMQPConfig, pub Publisher, logger *zap.Logger) *AMQPSender {
	return &AMQPSender{cfg: cfg, publisher: pub, logger: logger}
}

// Send implements automation.MessageSender
func (s *AMQPSender) Send(ctx context.Context, msg automation.Message) error {
	env, err := NewEnvelope(msg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	routingKey := s.cfg.EmailRoutingKey
	if env.Channel == ChannelWhatsApp {
		routingKey = s.cfg.WhatsAppRoutingKey
	}

	err = s.publisher.Publish(ctx, s.cfg.Exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ExecutionID.String(),
		Timestamp:    env.QueuedAt,
		Type:         string(env.Channel),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s message: %w", env.Channel, err)
	}

	s.logger.Debug("automation message published",
		zap.String("execution_id", msg.ExecutionID.String()),
		zap.String("routing_key", routingKey),
	)
	return nil
}

// Close closes the broker connection
func (s *AMQPSender) Close() error {
	return s.publisher.Close()
}

// channelPublisher owns one connection and confirm-mode channel, redialing
// once the connection has been closed by the broker.
type channelPublisher struct {
	cfg  AMQPConfig
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func dialChannel(cfg AMQPConfig) (*channelPublisher, error) {
	p := &channelPublisher{cfg: cfg}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *channelPublisher) connect() error {
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Properties: amqp.Table{
			"connection_name": "affiliate-automation",
		},
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	p.conn, p.ch = conn, ch
	return nil
}

func (p *channelPublisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, true, false, msg)
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errors.New("broker nacked message")
	}
	return nil
}

func (p *channelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

var _ automation.MessageSender = (*AMQPSender)(nil)
