package automation

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the state of one step firing for one lead
type ExecutionStatus string

const (
	StatusScheduled ExecutionStatus = "SCHEDULED"
	StatusSent      ExecutionStatus = "SENT"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusCancelled ExecutionStatus = "CANCELLED"
)

// IsValid returns true if the status is known
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for SENT, FAILED and CANCELLED
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// LeadContact is the snapshot of lead data taken at trigger time
type LeadContact struct {
	Name  string
	Email string
	Phone string
}

// ExecutionLog is the idempotency anchor and audit record of one step firing
// for one lead. A (StepID, LeadID) pair has at most one non-CANCELLED row.
//
// Status moves only through compare-and-set updates in the repository:
// SCHEDULED -> SENT (claim) or SCHEDULED -> CANCELLED, then SENT -> FAILED
// when delivery is not confirmed. CompletedAt marks a confirmed SENT.
type ExecutionLog struct {
	ID            uuid.UUID
	AutomationID  uuid.UUID
	StepID        uuid.UUID
	LeadID        uuid.UUID
	AffiliateID   uuid.UUID
	Status        ExecutionStatus
	ScheduledFor  time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
	Lead          LeadContact
	AffiliateName string
	TriggerType   TriggerType
	TriggerData   map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TriggerContext is the lead-side input of a trigger
type TriggerContext struct {
	LeadID        uuid.UUID
	Lead          LeadContact
	AffiliateName string
	TriggerData   map[string]string
	TriggeredAt   time.Time
}

// NewExecutionLog schedules step of a for the lead in tc
func NewExecutionLog(a *Automation, step *Step, tc TriggerContext) *ExecutionLog {
	now := time.Now()
	data := make(map[string]string, len(tc.TriggerData))
	for k, v := range tc.TriggerData {
		data[k] = v
	}
	return &ExecutionLog{
		ID:            uuid.New(),
		AutomationID:  a.ID,
		StepID:        step.ID,
		LeadID:        tc.LeadID,
		AffiliateID:   a.AffiliateID,
		Status:        StatusScheduled,
		ScheduledFor:  step.ScheduleFrom(tc.TriggeredAt),
		Lead:          tc.Lead,
		AffiliateName: tc.AffiliateName,
		TriggerType:   a.TriggerType,
		TriggerData:   data,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsDue reports whether a scheduled log should fire at now
func (l *ExecutionLog) IsDue(now time.Time) bool {
	return l.Status == StatusScheduled && !now.Before(l.ScheduledFor)
}
