package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AutomationFilter contains filter options for listing automations
type AutomationFilter struct {
	TriggerType *TriggerType
	IsActive    *bool
	Page        int
	PageSize    int
}

// AutomationRepository defines persistence for automations and their steps
type AutomationRepository interface {
	Create(ctx context.Context, a *Automation) error
	// FindByID loads the automation with all of its steps
	FindByID(ctx context.Context, id uuid.UUID) (*Automation, error)
	// Save persists the automation and synchronizes its step set. It fails
	// with shared.ErrConcurrencyConflict when the stored version is no longer
	// expectedVersion.
	Save(ctx context.Context, a *Automation, expectedVersion int) error
	// FindActiveByTrigger returns active automations of the affiliate for the
	// trigger, each loaded with steps ordered by StepOrder
	FindActiveByTrigger(ctx context.Context, affiliateID uuid.UUID, trigger TriggerType) ([]*Automation, error)
	FindStep(ctx context.Context, stepID uuid.UUID) (*Step, error)
	// IncrementSentCount adds one delivered message to the step's counter
	IncrementSentCount(ctx context.Context, stepID uuid.UUID) error
	ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, filter AutomationFilter) ([]*Automation, int64, error)
	CountByAffiliate(ctx context.Context, affiliateID uuid.UUID) (total int64, active int64, err error)
}

// ExecutionLogFilter contains filter options for listing execution logs
type ExecutionLogFilter struct {
	AutomationID *uuid.UUID
	LeadID       *uuid.UUID
	Status       *ExecutionStatus
	Page         int
	PageSize     int
}

// ExecutionLogRepository defines persistence for execution logs. Every status
// change is a compare-and-set on the current status; losing the race is
// reported as false or zero, never as an error.
type ExecutionLogRepository interface {
	// CreateIfAbsent inserts the log unless a non-CANCELLED log exists for the
	// same (step, lead). It reports whether the row was inserted.
	CreateIfAbsent(ctx context.Context, log *ExecutionLog) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ExecutionLog, error)
	// FindDue returns SCHEDULED logs whose time has come, oldest first
	FindDue(ctx context.Context, now time.Time, limit int) ([]*ExecutionLog, error)
	// Claim moves SCHEDULED -> SENT and stamps StartedAt
	Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ConfirmSent stamps CompletedAt on a claimed log
	ConfirmSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// MarkFailed moves an unconfirmed SENT log to FAILED
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error)
	// CancelScheduled moves every SCHEDULED log of (automation, lead) to CANCELLED
	CancelScheduled(ctx context.Context, automationID, leadID uuid.UUID) (int64, error)
	// FailStaleClaims fails SENT logs claimed before the cutoff that were never confirmed
	FailStaleClaims(ctx context.Context, claimedBefore time.Time, reason string) (int64, error)
	List(ctx context.Context, filter ExecutionLogFilter) ([]*ExecutionLog, int64, error)
	CountByStatus(ctx context.Context, affiliateID uuid.UUID) (map[ExecutionStatus]int64, error)
}

// CreditRepository defines persistence for messaging credit accounts
type CreditRepository interface {
	// FindByAffiliate fails with ErrCreditNotFound when the affiliate never
	// topped up
	FindByAffiliate(ctx context.Context, affiliateID uuid.UUID) (*CreditAccount, error)
	// Post locks the affiliate's account, creating it when missing, applies
	// post and stores the account together with the returned transaction. A
	// transaction whose (type, reference) is already stored fails with
	// ErrDuplicateCredit and changes nothing.
	Post(ctx context.Context, affiliateID uuid.UUID, post func(*CreditAccount) (*CreditTransaction, error)) (*CreditTransaction, error)
	ListTransactions(ctx context.Context, affiliateID uuid.UUID, page, pageSize int) ([]*CreditTransaction, int64, error)
}
