package handler

import (
	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/google/uuid"
)

// StepRequest describes one email step. A zero step_order appends the step.
type StepRequest struct {
	StepOrder    int    `json:"step_order" binding:"min=0"`
	DelayHours   int    `json:"delay_hours" binding:"min=0"`
	EmailSubject string `json:"email_subject" binding:"required,max=200"`
	EmailBody    string `json:"email_body" binding:"required"`
	IsActive     *bool  `json:"is_active"`
}

func (r StepRequest) toInput() automation.StepInput {
	return automation.StepInput{
		StepOrder:    r.StepOrder,
		DelayHours:   r.DelayHours,
		EmailSubject: r.EmailSubject,
		EmailBody:    r.EmailBody,
		IsActive:     r.IsActive,
	}
}

// CreateAutomationRequest creates an inactive automation
type CreateAutomationRequest struct {
	Name        string        `json:"name" binding:"required,max=100"`
	TriggerType string        `json:"trigger_type" binding:"required"`
	Steps       []StepRequest `json:"steps" binding:"dive"`
}

// UpdateAutomationRequest renames an automation or changes its trigger
type UpdateAutomationRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	TriggerType string `json:"trigger_type" binding:"required"`
}

// ListAutomationsQuery filters the caller's automations
type ListAutomationsQuery struct {
	TriggerType string `form:"trigger_type"`
	IsActive    *bool  `form:"is_active"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// LeadRequest is the contact the emails go to
type LeadRequest struct {
	Name  string `json:"name" binding:"max=100"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"max=30"`
}

// TriggerRequest reports a lead lifecycle event for the caller's automations
type TriggerRequest struct {
	LeadID        uuid.UUID         `json:"lead_id" binding:"required"`
	TriggerType   string            `json:"trigger_type" binding:"required"`
	Lead          LeadRequest       `json:"lead"`
	AffiliateName string            `json:"affiliate_name" binding:"max=100"`
	TriggerData   map[string]string `json:"trigger_data"`
}

// CancelRequest stops the remaining emails of an automation for a lead
type CancelRequest struct {
	LeadID uuid.UUID `json:"lead_id" binding:"required"`
}

// ListLogsQuery filters an automation's execution logs
type ListLogsQuery struct {
	LeadID   string `form:"lead_id" binding:"omitempty,uuid"`
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TopUpCreditsRequest records purchased messaging credits. payment_reference
// identifies the payment so it is credited once.
type TopUpCreditsRequest struct {
	Amount           int    `json:"amount" binding:"required,min=1"`
	PaymentReference string `json:"payment_reference" binding:"required,max=100"`
	Description      string `json:"description" binding:"max=300"`
}

// PageQuery pages a listing
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}
