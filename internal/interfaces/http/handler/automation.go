package handler

import (
	automationapp "github.com/eksporyuk/backend/internal/application/automation"
	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AutomationHandler handles the caller's email automations
type AutomationHandler struct {
	BaseHandler
	definitions *automationapp.DefinitionService
	scheduler   *automationapp.SchedulerService
}

// NewAutomationHandler creates a new AutomationHandler
func NewAutomationHandler(definitions *automationapp.DefinitionService, scheduler *automationapp.SchedulerService) *AutomationHandler {
	return &AutomationHandler{
		definitions: definitions,
		scheduler:   scheduler,
	}
}

// ownedAutomation resolves the caller and the :id path parameter
func (h *AutomationHandler) ownedAutomation(c *gin.Context) (affiliateID, id uuid.UUID, ok bool) {
	caller, ok := h.caller(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok = h.pathUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return caller.UserID, id, true
}

// Create godoc
// @Summary      Create an automation
// @Description  New automations start inactive
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        request body CreateAutomationRequest true "Automation"
// @Security     BearerAuth
// @Router       /automations [post]
func (h *AutomationHandler) Create(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req CreateAutomationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	steps := make([]automation.StepInput, len(req.Steps))
	for i, s := range req.Steps {
		steps[i] = s.toInput()
	}
	resp, err := h.definitions.Create(c.Request.Context(), caller.UserID, automationapp.CreateAutomationInput{
		Name:        req.Name,
		TriggerType: automation.TriggerType(req.TriggerType),
		Steps:       steps,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @Summary      List the caller's automations
// @Tags         automations
// @Produce      json
// @Param        trigger_type query string false "Trigger type"
// @Param        is_active query bool false "Active only"
// @Security     BearerAuth
// @Router       /automations [get]
func (h *AutomationHandler) List(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var q ListAutomationsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := automation.AutomationFilter{IsActive: q.IsActive, Page: q.Page, PageSize: q.PageSize}
	if q.TriggerType != "" {
		trigger := automation.TriggerType(q.TriggerType)
		filter.TriggerType = &trigger
	}
	result, err := h.definitions.List(c.Request.Context(), caller.UserID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @Summary      Get an automation with its steps
// @Tags         automations
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Security     BearerAuth
// @Router       /automations/{id} [get]
func (h *AutomationHandler) Get(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}

	resp, err := h.definitions.Get(c.Request.Context(), affiliateID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update godoc
// @Summary      Rename an automation or change its trigger
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Param        request body UpdateAutomationRequest true "Automation"
// @Security     BearerAuth
// @Router       /automations/{id} [put]
func (h *AutomationHandler) Update(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}
	var req UpdateAutomationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.definitions.Update(c.Request.Context(), affiliateID, id, req.Name, automation.TriggerType(req.TriggerType))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddStep godoc
// @Summary      Add a step
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Param        request body StepRequest true "Step"
// @Security     BearerAuth
// @Router       /automations/{id}/steps [post]
func (h *AutomationHandler) AddStep(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}
	var req StepRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.definitions.AddStep(c.Request.Context(), affiliateID, id, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateStep godoc
// @Summary      Update a step
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Param        stepId path string true "Step ID" format(uuid)
// @Param        request body StepRequest true "Step"
// @Security     BearerAuth
// @Router       /automations/{id}/steps/{stepId} [put]
func (h *AutomationHandler) UpdateStep(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}
	stepID, ok := h.pathUUID(c, "stepId")
	if !ok {
		return
	}
	var req StepRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.definitions.UpdateStep(c.Request.Context(), affiliateID, id, stepID, req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveStep godoc
// @Summary      Remove a step
// @Tags         automations
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Param        stepId path string true "Step ID" format(uuid)
// @Security     BearerAuth
// @Router       /automations/{id}/steps/{stepId} [delete]
func (h *AutomationHandler) RemoveStep(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}
	stepID, ok := h.pathUUID(c, "stepId")
	if !ok {
		return
	}

	resp, err := h.definitions.RemoveStep(c.Request.Context(), affiliateID, id, stepID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Activate godoc
// @Summary      Activate an automation
// @Description  Needs at least one active step with non-decreasing delays
// @Tags         automations
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Security     BearerAuth
// @Router       /automations/{id}/activate [post]
func (h *AutomationHandler) Activate(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}

	resp, err := h.definitions.Activate(c.Request.Context(), affiliateID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Deactivate godoc
// @Summary      Deactivate an automation
// @Description  Already scheduled emails still go out; cancel them per lead
// @Tags         automations
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Security     BearerAuth
// @Router       /automations/{id}/deactivate [post]
func (h *AutomationHandler) Deactivate(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}

	resp, err := h.definitions.Deactivate(c.Request.Context(), affiliateID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Trigger godoc
// @Summary      Trigger automations for a lead
// @Description  Schedules every active step of the caller's active automations for the trigger
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        request body TriggerRequest true "Lead event"
// @Security     BearerAuth
// @Router       /automations/trigger [post]
func (h *AutomationHandler) Trigger(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req TriggerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.scheduler.Trigger(c.Request.Context(), automationapp.TriggerInput{
		LeadID:      req.LeadID,
		AffiliateID: caller.UserID,
		TriggerType: automation.TriggerType(req.TriggerType),
		Lead: automation.LeadContact{
			Name:  req.Lead.Name,
			Email: req.Lead.Email,
			Phone: req.Lead.Phone,
		},
		AffiliateName: req.AffiliateName,
		TriggerData:   req.TriggerData,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel godoc
// @Summary      Cancel an automation for a lead
// @Description  Cancels the lead's emails that are still scheduled
// @Tags         automations
// @Accept       json
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Param        request body CancelRequest true "Lead"
// @Security     BearerAuth
// @Router       /automations/{id}/cancel [post]
func (h *AutomationHandler) Cancel(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}
	var req CancelRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if _, err := h.definitions.Get(c.Request.Context(), affiliateID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := h.scheduler.Cancel(c.Request.Context(), id, req.LeadID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Stats godoc
// @Summary      Automation statistics
// @Tags         automations
// @Produce      json
// @Security     BearerAuth
// @Router       /automations/stats [get]
func (h *AutomationHandler) Stats(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	stats, err := h.definitions.GetStats(c.Request.Context(), caller.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// ListLogs godoc
// @Summary      List execution logs of an automation
// @Tags         automations
// @Produce      json
// @Param        id path string true "Automation ID" format(uuid)
// @Param        lead_id query string false "Lead ID" format(uuid)
// @Param        status query string false "Execution status"
// @Security     BearerAuth
// @Router       /automations/{id}/logs [get]
func (h *AutomationHandler) ListLogs(c *gin.Context) {
	affiliateID, id, ok := h.ownedAutomation(c)
	if !ok {
		return
	}
	var q ListLogsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := automation.ExecutionLogFilter{Page: q.Page, PageSize: q.PageSize}
	if q.LeadID != "" {
		leadID := uuid.MustParse(q.LeadID)
		filter.LeadID = &leadID
	}
	if q.Status != "" {
		status := automation.ExecutionStatus(q.Status)
		filter.Status = &status
	}
	result, err := h.definitions.ListLogs(c.Request.Context(), affiliateID, id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
