package models

import (
	"encoding/json"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/google/uuid"
)

// AutomationModel is the persistence model for automation.Automation
type AutomationModel struct {
	AggregateModel
	AffiliateID uuid.UUID              `gorm:"type:uuid;not null;index:idx_automation_affiliate_trigger,priority:1"`
	Name        string                 `gorm:"type:varchar(200);not null"`
	TriggerType automation.TriggerType `gorm:"type:varchar(30);not null;index:idx_automation_affiliate_trigger,priority:2"`
	IsActive    bool                   `gorm:"not null"`
	Steps       []AutomationStepModel  `gorm:"foreignKey:AutomationID;references:ID"`
}

// TableName returns the table name for GORM
func (AutomationModel) TableName() string {
	return "affiliate_automations"
}

// ToDomain converts the model to a domain Automation
func (m *AutomationModel) ToDomain() *automation.Automation {
	steps := make([]*automation.Step, len(m.Steps))
	for i := range m.Steps {
		steps[i] = m.Steps[i].ToDomain()
	}
	return &automation.Automation{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		AffiliateID:       m.AffiliateID,
		Name:              m.Name,
		TriggerType:       m.TriggerType,
		IsActive:          m.IsActive,
		Steps:             steps,
	}
}

// AutomationModelFromDomain creates a model from a domain Automation.
// Steps are converted as well.
func AutomationModelFromDomain(a *automation.Automation) *AutomationModel {
	m := &AutomationModel{
		AffiliateID: a.AffiliateID,
		Name:        a.Name,
		TriggerType: a.TriggerType,
		IsActive:    a.IsActive,
		Steps:       make([]AutomationStepModel, len(a.Steps)),
	}
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	for i, s := range a.Steps {
		m.Steps[i] = *AutomationStepModelFromDomain(s)
	}
	return m
}

// AutomationStepModel is the persistence model for automation.Step
type AutomationStepModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	AutomationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_step_automation_order,priority:1"`
	StepOrder    int       `gorm:"not null;uniqueIndex:idx_step_automation_order,priority:2"`
	DelayHours   int       `gorm:"not null;default:0"`
	EmailSubject string    `gorm:"type:varchar(300);not null"`
	EmailBody    string    `gorm:"type:text;not null"`
	IsActive     bool      `gorm:"not null"`
	SentCount    int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AutomationStepModel) TableName() string {
	return "affiliate_automation_steps"
}

// ToDomain converts the model to a domain Step
func (m *AutomationStepModel) ToDomain() *automation.Step {
	return &automation.Step{
		ID:           m.ID,
		AutomationID: m.AutomationID,
		StepOrder:    m.StepOrder,
		DelayHours:   m.DelayHours,
		EmailSubject: m.EmailSubject,
		EmailBody:    m.EmailBody,
		IsActive:     m.IsActive,
		SentCount:    m.SentCount,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// AutomationStepModelFromDomain creates a model from a domain Step
func AutomationStepModelFromDomain(s *automation.Step) *AutomationStepModel {
	return &AutomationStepModel{
		ID:           s.ID,
		AutomationID: s.AutomationID,
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

// ExecutionLogModel is the persistence model for automation.ExecutionLog.
// The partial unique index keeps one live row per (step, lead); cancelled
// rows do not count so a lead can be re-enrolled after a cancel.
type ExecutionLogModel struct {
	ID            uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	AutomationID  uuid.UUID                  `gorm:"type:uuid;not null;index:idx_exec_automation_lead,priority:1"`
	StepID        uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_exec_step_lead_live,priority:1,where:status <> 'CANCELLED'"`
	LeadID        uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_exec_step_lead_live,priority:2;index:idx_exec_automation_lead,priority:2"`
	AffiliateID   uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Status        automation.ExecutionStatus `gorm:"type:varchar(20);not null;default:'SCHEDULED';index:idx_exec_status_scheduled,priority:1"`
	ScheduledFor  time.Time                  `gorm:"not null;index:idx_exec_status_scheduled,priority:2"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ErrorMessage  string                 `gorm:"type:text"`
	LeadName      string                 `gorm:"type:varchar(200)"`
	LeadEmail     string                 `gorm:"type:varchar(200)"`
	LeadPhone     string                 `gorm:"type:varchar(50)"`
	AffiliateName string                 `gorm:"type:varchar(200)"`
	TriggerType   automation.TriggerType `gorm:"type:varchar(30);not null"`
	TriggerData   []byte                 `gorm:"type:jsonb"`
	CreatedAt     time.Time              `gorm:"not null"`
	UpdatedAt     time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExecutionLogModel) TableName() string {
	return "affiliate_automation_execution_logs"
}

// ToDomain converts the model to a domain ExecutionLog
func (m *ExecutionLogModel) ToDomain() *automation.ExecutionLog {
	data := make(map[string]string)
	if len(m.TriggerData) > 0 {
		// stored by this package, so a decode failure leaves the map empty
		_ = json.Unmarshal(m.TriggerData, &data)
	}
	return &automation.ExecutionLog{
		ID:           m.ID,
		AutomationID: m.AutomationID,
		StepID:       m.StepID,
		LeadID:       m.LeadID,
		AffiliateID:  m.AffiliateID,
		Status:       m.Status,
		ScheduledFor: m.ScheduledFor,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		ErrorMessage: m.ErrorMessage,
		Lead: automation.LeadContact{
			Name:  m.LeadName,
			Email: m.LeadEmail,
			Phone: m.LeadPhone,
		},
		AffiliateName: m.AffiliateName,
		TriggerType:   m.TriggerType,
		TriggerData:   data,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ExecutionLogModelFromDomain creates a model from a domain ExecutionLog
func ExecutionLogModelFromDomain(l *automation.ExecutionLog) (*ExecutionLogModel, error) {
	var data []byte
	if len(l.TriggerData) > 0 {
		b, err := json.Marshal(l.TriggerData)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return &ExecutionLogModel{
		ID:            l.ID,
		AutomationID:  l.AutomationID,
		StepID:        l.StepID,
		LeadID:        l.LeadID,
		AffiliateID:   l.AffiliateID,
		Status:        l.Status,
		ScheduledFor:  l.ScheduledFor.UTC(),
		StartedAt:     l.StartedAt,
		CompletedAt:   l.CompletedAt,
		ErrorMessage:  l.ErrorMessage,
		LeadName:      l.Lead.Name,
		LeadEmail:     l.Lead.Email,
		LeadPhone:     l.Lead.Phone,
		AffiliateName: l.AffiliateName,
		TriggerType:   l.TriggerType,
		TriggerData:   data,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}, nil
}
