package automation

import (
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CreateAutomationInput is the input of DefinitionService.Create
type CreateAutomationInput struct {
	Name        string
	TriggerType automation.TriggerType
	Steps       []automation.StepInput
}

// StepResponse represents an automation step in API responses
type StepResponse struct {
	ID           uuid.UUID `json:"id"`
	StepOrder    int       `json:"step_order"`
	DelayHours   int       `json:"delay_hours"`
	EmailSubject string    `json:"email_subject"`
	EmailBody    string    `json:"email_body"`
	IsActive     bool      `json:"is_active"`
	SentCount    int       `json:"sent_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AutomationResponse represents an automation in API responses
type AutomationResponse struct {
	ID          uuid.UUID      `json:"id"`
	AffiliateID uuid.UUID      `json:"affiliate_id"`
	Name        string         `json:"name"`
	TriggerType string         `json:"trigger_type"`
	IsActive    bool           `json:"is_active"`
	Steps       []StepResponse `json:"steps"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToStepResponse converts a domain Step to StepResponse
func ToStepResponse(s *automation.Step) StepResponse {
	return StepResponse{
		ID:           s.ID,
		StepOrder:    s.StepOrder,
		DelayHours:   s.DelayHours,
		EmailSubject: s.EmailSubject,
		EmailBody:    s.EmailBody,
		IsActive:     s.IsActive,
		SentCount:    s.SentCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ToAutomationResponse converts a domain Automation to AutomationResponse
func ToAutomationResponse(a *automation.Automation) AutomationResponse {
	steps := make([]StepResponse, len(a.Steps))
	for i, s := range a.Steps {
		steps[i] = ToStepResponse(s)
	}
	return AutomationResponse{
		ID:          a.ID,
		AffiliateID: a.AffiliateID,
		Name:        a.Name,
		TriggerType: string(a.TriggerType),
		IsActive:    a.IsActive,
		Steps:       steps,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ExecutionLogResponse represents an execution log in API responses
type ExecutionLogResponse struct {
	ID           uuid.UUID  `json:"id"`
	AutomationID uuid.UUID  `json:"automation_id"`
	StepID       uuid.UUID  `json:"step_id"`
	LeadID       uuid.UUID  `json:"lead_id"`
	LeadName     string     `json:"lead_name,omitempty"`
	LeadEmail    string     `json:"lead_email,omitempty"`
	Status       string     `json:"status"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToExecutionLogResponse converts a domain ExecutionLog to its response
func ToExecutionLogResponse(l *automation.ExecutionLog) ExecutionLogResponse {
	return ExecutionLogResponse{
		ID:           l.ID,
		AutomationID: l.AutomationID,
		StepID:       l.StepID,
		LeadID:       l.LeadID,
		LeadName:     l.Lead.Name,
		LeadEmail:    l.Lead.Email,
		Status:       string(l.Status),
		ScheduledFor: l.ScheduledFor,
		StartedAt:    l.StartedAt,
		CompletedAt:  l.CompletedAt,
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    l.CreatedAt,
	}
}

// StatsResponse summarizes an affiliate's automations
type StatsResponse struct {
	TotalAutomations  int64            `json:"total_automations"`
	ActiveAutomations int64            `json:"active_automations"`
	Jobs              map[string]int64 `json:"jobs"`
	SuccessRate       float64          `json:"success_rate"`
}

// ToStatsResponse converts domain Stats to StatsResponse
func ToStatsResponse(s automation.Stats) StatsResponse {
	jobs := make(map[string]int64, len(s.Jobs))
	for status, n := range s.Jobs {
		jobs[string(status)] = n
	}
	return StatsResponse{
		TotalAutomations:  s.TotalAutomations,
		ActiveAutomations: s.ActiveAutomations,
		Jobs:              jobs,
		SuccessRate:       s.SuccessRate,
	}
}

// TriggerInput describes a lead lifecycle event
type TriggerInput struct {
	LeadID        uuid.UUID
	AffiliateID   uuid.UUID
	TriggerType   automation.TriggerType
	Lead          automation.LeadContact
	AffiliateName string
	TriggerData   map[string]string
	// TriggeredAt defaults to now
	TriggeredAt time.Time
}

// TriggerResult lists the steps scheduled for the lead, the execution logs
// created for them (same order), and the steps skipped because the lead
// already had a live log for them
type TriggerResult struct {
	Scheduled    []uuid.UUID `json:"scheduled"`
	ExecutionIDs []uuid.UUID `json:"execution_ids"`
	Skipped      []uuid.UUID `json:"skipped"`
}

// CancelResult reports how many scheduled executions were cancelled
type CancelResult struct {
	CancelledCount int64 `json:"cancelled_count"`
}

// CreditBalanceResponse is an affiliate's messaging credit balance
type CreditBalanceResponse struct {
	AffiliateID uuid.UUID `json:"affiliate_id"`
	Balance     int       `json:"balance"`
	TotalTopUp  int       `json:"total_top_up"`
	TotalUsed   int       `json:"total_used"`
}

// CreditTransactionResponse represents a credit movement in API responses
type CreditTransactionResponse struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Amount        int       `json:"amount"`
	BalanceBefore int       `json:"balance_before"`
	BalanceAfter  int       `json:"balance_after"`
	Description   string    `json:"description,omitempty"`
	ReferenceID   string    `json:"reference_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToCreditTransactionResponse converts a domain CreditTransaction
func ToCreditTransactionResponse(t *automation.CreditTransaction) CreditTransactionResponse {
	return CreditTransactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}

func toPage[S any, T any](items []S, total int64, page, pageSize int, conv func(S) T) shared.Paginated[T] {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = conv(it)
	}
	return shared.NewPaginated(out, total, page, pageSize)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
