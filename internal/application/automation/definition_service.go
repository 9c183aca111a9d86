package automation

import (
	"context"
	"fmt"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefinitionService manages an affiliate's automations and steps. Every
// call is scoped to the calling affiliate; touching another affiliate's
// automation fails with ErrNotOwner.
type DefinitionService struct {
	repo    automation.AutomationRepository
	logRepo automation.ExecutionLogRepository
	logger  *zap.Logger
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(
	repo automation.AutomationRepository,
	logRepo automation.ExecutionLogRepository,
	logger *zap.Logger,
) *DefinitionService {
	return &DefinitionService{
		repo:    repo,
		logRepo: logRepo,
		logger:  logger,
	}
}

// Create creates an inactive automation with optional initial steps
func (s *DefinitionService) Create(ctx context.Context, affiliateID uuid.UUID, in CreateAutomationInput) (*AutomationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "automation", "create")
	defer span.End()

	a, err := automation.NewAutomation(affiliateID, in.Name, in.TriggerType)
	if err != nil {
		return nil, err
	}
	for _, step := range in.Steps {
		if _, err := a.AddStep(step); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	s.logger.Info("automation created",
		zap.String("automation_id", a.ID.String()),
		zap.String("affiliate_id", affiliateID.String()),
		zap.String("trigger_type", string(a.TriggerType)),
		zap.Int("steps", len(a.Steps)),
	)
	resp := ToAutomationResponse(a)
	return &resp, nil
}

// Get returns one of the affiliate's automations with its steps
func (s *DefinitionService) Get(ctx context.Context, affiliateID, id uuid.UUID) (*AutomationResponse, error) {
	a, err := s.load(ctx, affiliateID, id)
	if err != nil {
		return nil, err
	}
	resp := ToAutomationResponse(a)
	return &resp, nil
}

// Update renames the automation or changes its trigger
func (s *DefinitionService) Update(ctx context.Context, affiliateID, id uuid.UUID, name string, trigger automation.TriggerType) (*AutomationResponse, error) {
	return s.mutate(ctx, "update", affiliateID, id, func(a *automation.Automation) error {
		return a.Update(name, trigger)
	})
}

// AddStep appends a step. On an active automation the new delay must keep
// the active steps in non-decreasing delay order.
func (s *DefinitionService) AddStep(ctx context.Context, affiliateID, id uuid.UUID, in automation.StepInput) (*AutomationResponse, error) {
	return s.mutate(ctx, "add_step", affiliateID, id, func(a *automation.Automation) error {
		_, err := a.AddStep(in)
		return err
	})
}

// UpdateStep edits a step
func (s *DefinitionService) UpdateStep(ctx context.Context, affiliateID, id, stepID uuid.UUID, in automation.StepInput) (*AutomationResponse, error) {
	return s.mutate(ctx, "update_step", affiliateID, id, func(a *automation.Automation) error {
		_, err := a.UpdateStep(stepID, in)
		return err
	})
}

// RemoveStep deletes a step. Logs already scheduled for it are left alone
// and fail at send time.
func (s *DefinitionService) RemoveStep(ctx context.Context, affiliateID, id, stepID uuid.UUID) (*AutomationResponse, error) {
	return s.mutate(ctx, "remove_step", affiliateID, id, func(a *automation.Automation) error {
		return a.RemoveStep(stepID)
	})
}

// Activate turns the automation on
func (s *DefinitionService) Activate(ctx context.Context, affiliateID, id uuid.UUID) (*AutomationResponse, error) {
	return s.mutate(ctx, "activate", affiliateID, id, func(a *automation.Automation) error {
		return a.Activate()
	})
}

// Deactivate turns the automation off. Scheduled executions still fire
// unless cancelled per lead.
func (s *DefinitionService) Deactivate(ctx context.Context, affiliateID, id uuid.UUID) (*AutomationResponse, error) {
	return s.mutate(ctx, "deactivate", affiliateID, id, func(a *automation.Automation) error {
		a.Deactivate()
		return nil
	})
}

// List returns the affiliate's automations
func (s *DefinitionService) List(ctx context.Context, affiliateID uuid.UUID, filter automation.AutomationFilter) (*shared.Paginated[AutomationResponse], error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	if filter.TriggerType != nil && !filter.TriggerType.IsValid() {
		return nil, automation.ErrInvalidTrigger
	}

	items, total, err := s.repo.ListByAffiliate(ctx, affiliateID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}
	page := toPage(items, total, filter.Page, filter.PageSize, ToAutomationResponse)
	return &page, nil
}

// GetStats summarizes the affiliate's automations and execution outcomes
func (s *DefinitionService) GetStats(ctx context.Context, affiliateID uuid.UUID) (*StatsResponse, error) {
	total, active, err := s.repo.CountByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to count automations: %w", err)
	}
	jobs, err := s.logRepo.CountByStatus(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions: %w", err)
	}
	resp := ToStatsResponse(automation.NewStats(total, active, jobs))
	return &resp, nil
}

// ListLogs returns execution logs of one of the affiliate's automations
func (s *DefinitionService) ListLogs(ctx context.Context, affiliateID, id uuid.UUID, filter automation.ExecutionLogFilter) (*shared.Paginated[ExecutionLogResponse], error) {
	if _, err := s.load(ctx, affiliateID, id); err != nil {
		return nil, err
	}
	filter.AutomationID = &id
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Unknown execution status")
	}

	items, total, err := s.logRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	page := toPage(items, total, filter.Page, filter.PageSize, ToExecutionLogResponse)
	return &page, nil
}

func (s *DefinitionService) load(ctx context.Context, affiliateID, id uuid.UUID) (*automation.Automation, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.OwnedBy(affiliateID) {
		return nil, automation.ErrNotOwner
	}
	return a, nil
}

func (s *DefinitionService) mutate(ctx context.Context, method string, affiliateID, id uuid.UUID, fn func(a *automation.Automation) error) (*AutomationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "automation", method)
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrAutomationID, id.String())

	a, err := s.load(ctx, affiliateID, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	version := a.Version
	if err := fn(a); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repo.Save(ctx, a, version); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("automation updated",
		zap.String("automation_id", id.String()),
		zap.String("action", method),
		zap.Bool("is_active", a.IsActive),
	)
	resp := ToAutomationResponse(a)
	return &resp, nil
}
