// Package messaging delivers rendered automation messages to the lead's
// inbox through a message broker.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Channel names the delivery route of a message
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// ErrNoContact is returned for leads with neither email nor phone
var ErrNoContact = errors.New("lead has no email or phone")

// Envelope is the wire format consumed by the mail and WhatsApp gateways
type Envelope struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	LeadID      uuid.UUID `json:"lead_id"`
	AffiliateID uuid.UUID `json:"affiliate_id"`
	Channel     Channel   `json:"channel"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	QueuedAt    time.Time `json:"queued_at"`
}

// NewEnvelope picks the channel for msg, preferring email
func NewEnvelope(msg automation.Message) (Envelope, error) {
	env := Envelope{
		ExecutionID: msg.ExecutionID,
		LeadID:      msg.LeadID,
		AffiliateID: msg.AffiliateID,
		Name:        msg.To.Name,
		Email:       msg.To.Email,
		Phone:       msg.To.Phone,
		Subject:     msg.Subject,
		Body:        msg.Body,
		QueuedAt:    time.Now().UTC(),
	}
	switch {
	case msg.To.Email != "":
		env.Channel = ChannelEmail
	case msg.To.Phone != "":
		env.Channel = ChannelWhatsApp
	default:
		return Envelope{}, ErrNoContact
	}
	return env, nil
}

// LogSender only logs messages. It is the development transport.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements automation.MessageSender
func (s *LogSender) Send(ctx context.Context, msg automation.Message) error {
	env, err := NewEnvelope(msg)
	if err != nil {
		return err
	}
	body, _ := json.Marshal(env)
	s.logger.Info("automation message",
		zap.String("execution_id", msg.ExecutionID.String()),
		zap.String("channel", string(env.Channel)),
		zap.ByteString("envelope", body),
	)
	return nil
}

var _ automation.MessageSender = (*LogSender)(nil)
