package automation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Message is a rendered step ready for the messaging transport
type Message struct {
	// ExecutionID lets the transport deduplicate redeliveries
	ExecutionID uuid.UUID
	LeadID      uuid.UUID
	AffiliateID uuid.UUID
	To          LeadContact
	Subject     string
	Body        string
}

// MessageSender delivers rendered messages over email or WhatsApp.
// Any returned error marks the execution FAILED.
type MessageSender interface {
	Send(ctx context.Context, msg Message) error
}

// Variables returns the shortcode values available to a log's templates.
// Trigger data keys are exposed as-is and never override the lead fields.
func (l *ExecutionLog) Variables() map[string]string {
	vars := make(map[string]string, len(l.TriggerData)+7)
	for k, v := range l.TriggerData {
		vars[k] = v
	}
	vars["nama"] = l.Lead.Name
	vars["name"] = l.Lead.Name
	vars["email"] = l.Lead.Email
	vars["whatsapp"] = l.Lead.Phone
	vars["phone"] = l.Lead.Phone
	vars["affiliate"] = l.AffiliateName
	return vars
}

// Render replaces {{key}} shortcodes. Unknown shortcodes are left in place
// and keys match with surrounding spaces trimmed, so {{ nama }} works too.
func Render(text string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(text))
	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.Index(text[start+2:], "}}")
		if end < 0 {
			b.WriteString(text)
			return b.String()
		}
		end += start + 2

		b.WriteString(text[:start])
		key := strings.TrimSpace(text[start+2 : end])
		if v, ok := vars[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(text[start : end+2])
		}
		text = text[end+2:]
	}
}

// BuildMessage renders step for the log's lead
func BuildMessage(l *ExecutionLog, step *Step) Message {
	vars := l.Variables()
	return Message{
		ExecutionID: l.ID,
		LeadID:      l.LeadID,
		AffiliateID: l.AffiliateID,
		To:          l.Lead,
		Subject:     Render(step.EmailSubject, vars),
		Body:        Render(step.EmailBody, vars),
	}
}
