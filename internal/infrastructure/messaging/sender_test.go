package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

type fakePublisher struct {
	err    error
	sent   []published
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{exchange, routingKey, msg})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

var testConfig = AMQPConfig{
	Exchange:           "affiliate.automation",
	EmailRoutingKey:    "send.email",
	WhatsAppRoutingKey: "send.whatsapp",
}

func message(email, phone string) automation.Message {
	return automation.Message{
		ExecutionID: uuid.New(),
		LeadID:      uuid.New(),
		AffiliateID: uuid.New(),
		To:          automation.LeadContact{Name: "Budi", Email: email, Phone: phone},
		Subject:     "Halo Budi",
		Body:        "Selamat datang",
	}
}

func TestAMQPSender_Send(t *testing.T) {
	t.Run("email lead goes to email route", func(t *testing.T) {
		pub := &fakePublisher{}
		sender := NewAMQPSenderWithPublisher(testConfig, pub, zap.NewNop())

		msg := message("budi@example.com", "0812")
		require.NoError(t, sender.Send(context.Background(), msg))

		require.Len(t, pub.sent, 1)
		got := pub.sent[0]
		assert.Equal(t, "affiliate.automation", got.exchange)
		assert.Equal(t, "send.email", got.routingKey)
		assert.Equal(t, msg.ExecutionID.String(), got.msg.MessageId)
		assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

		var env Envelope
		require.NoError(t, json.Unmarshal(got.msg.Body, &env))
		assert.Equal(t, ChannelEmail, env.Channel)
		assert.Equal(t, "Halo Budi", env.Subject)
		assert.Equal(t, msg.LeadID, env.LeadID)
	})

	t.Run("phone-only lead goes to whatsapp route", func(t *testing.T) {
		pub := &fakePublisher{}
		sender := NewAMQPSenderWithPublisher(testConfig, pub, zap.NewNop())

		require.NoError(t, sender.Send(context.Background(), message("", "08123456789")))
		require.Len(t, pub.sent, 1)
		assert.Equal(t, "send.whatsapp", pub.sent[0].routingKey)
	})

	t.Run("lead without contact fails", func(t *testing.T) {
		pub := &fakePublisher{}
		sender := NewAMQPSenderWithPublisher(testConfig, pub, zap.NewNop())

		err := sender.Send(context.Background(), message("", ""))
		assert.ErrorIs(t, err, ErrNoContact)
		assert.Empty(t, pub.sent)
	})

	t.Run("broker failure is returned", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker nacked message")}
		sender := NewAMQPSenderWithPublisher(testConfig, pub, zap.NewNop())

		err := sender.Send(context.Background(), message("budi@example.com", ""))
		assert.ErrorContains(t, err, "nacked")
	})

	t.Run("close closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		sender := NewAMQPSenderWithPublisher(testConfig, pub, zap.NewNop())
		require.NoError(t, sender.Close())
		assert.True(t, pub.closed)
	})
}

func TestLogSender_Send(t *testing.T) {
	sender := NewLogSender(zap.NewNop())

	assert.NoError(t, sender.Send(context.Background(), message("budi@example.com", "")))
	assert.ErrorIs(t, sender.Send(context.Background(), message("", "")), ErrNoContact)
}
