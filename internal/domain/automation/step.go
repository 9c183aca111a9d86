package automation

import (
	"strings"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Step is one message of an automation, fired DelayHours after the trigger.
// SentCount is maintained by the executor and never written by edits.
type Step struct {
	ID           uuid.UUID
	AutomationID uuid.UUID
	StepOrder    int
	DelayHours   int
	EmailSubject string
	EmailBody    string
	IsActive     bool
	SentCount    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StepInput carries the editable fields of a step
type StepInput struct {
	StepOrder    int
	DelayHours   int
	EmailSubject string
	EmailBody    string
	IsActive     *bool
}

func (in StepInput) validate() error {
	if in.DelayHours < 0 {
		return ErrInvalidDelay
	}
	if in.StepOrder < 0 {
		return shared.NewDomainError("INVALID_STEP_ORDER", "Step order cannot be negative")
	}
	if strings.TrimSpace(in.EmailSubject) == "" {
		return shared.NewDomainError("INVALID_SUBJECT", "Email subject is required")
	}
	if strings.TrimSpace(in.EmailBody) == "" {
		return shared.NewDomainError("INVALID_BODY", "Email body is required")
	}
	return nil
}

// ScheduleFrom returns the firing time for a trigger at t
func (s *Step) ScheduleFrom(t time.Time) time.Time {
	return t.Add(time.Duration(s.DelayHours) * time.Hour)
}
