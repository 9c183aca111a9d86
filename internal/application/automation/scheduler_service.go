package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchedulerService expands lead triggers into scheduled execution logs and
// cancels them.
type SchedulerService struct {
	repo    automation.AutomationRepository
	logRepo automation.ExecutionLogRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewSchedulerService creates a new SchedulerService
func NewSchedulerService(
	repo automation.AutomationRepository,
	logRepo automation.ExecutionLogRepository,
	logger *zap.Logger,
) *SchedulerService {
	return &SchedulerService{
		repo:    repo,
		logRepo: logRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// Trigger schedules every active step of the affiliate's active automations
// for the trigger at TriggeredAt plus the step delay. A step the lead already
// has a live log for is skipped, so repeating a trigger never doubles sends.
func (s *SchedulerService) Trigger(ctx context.Context, in TriggerInput) (*TriggerResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", "trigger")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLeadID, in.LeadID.String(),
		telemetry.SpanAttrUserID, in.AffiliateID.String(),
		telemetry.SpanAttrTriggerType, string(in.TriggerType),
	)

	if !in.TriggerType.IsValid() {
		return nil, automation.ErrInvalidTrigger
	}
	if in.LeadID == uuid.Nil || in.AffiliateID == uuid.Nil {
		return nil, automation.ErrInvalidTriggerInput
	}
	if in.TriggeredAt.IsZero() {
		in.TriggeredAt = s.now()
	}

	automations, err := s.repo.FindActiveByTrigger(ctx, in.AffiliateID, in.TriggerType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load automations: %w", err)
	}

	tc := automation.TriggerContext{
		LeadID:        in.LeadID,
		Lead:          in.Lead,
		AffiliateName: in.AffiliateName,
		TriggerData:   in.TriggerData,
		TriggeredAt:   in.TriggeredAt,
	}

	result := &TriggerResult{
		Scheduled:    []uuid.UUID{},
		ExecutionIDs: []uuid.UUID{},
		Skipped:      []uuid.UUID{},
	}
	for _, a := range automations {
		for _, step := range a.ActiveSteps() {
			log := automation.NewExecutionLog(a, step, tc)
			created, err := s.logRepo.CreateIfAbsent(ctx, log)
			if err != nil {
				telemetry.RecordError(span, err)
				return result, fmt.Errorf("failed to schedule step %s: %w", step.ID, err)
			}
			if created {
				result.Scheduled = append(result.Scheduled, step.ID)
				result.ExecutionIDs = append(result.ExecutionIDs, log.ID)
			} else {
				result.Skipped = append(result.Skipped, step.ID)
			}
		}
	}

	s.logger.Info("automation triggered",
		zap.String("lead_id", in.LeadID.String()),
		zap.String("affiliate_id", in.AffiliateID.String()),
		zap.String("trigger_type", string(in.TriggerType)),
		zap.Int("automations", len(automations)),
		zap.Int("scheduled", len(result.Scheduled)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// Cancel cancels the lead's SCHEDULED executions of an automation. Logs
// already claimed or finished are untouched; cancelling nothing is not an
// error.
func (s *SchedulerService) Cancel(ctx context.Context, automationID, leadID uuid.UUID) (*CancelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", "cancel")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAutomationID, automationID.String(),
		telemetry.SpanAttrLeadID, leadID.String(),
	)

	n, err := s.logRepo.CancelScheduled(ctx, automationID, leadID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to cancel executions: %w", err)
	}

	s.logger.Info("automation cancelled for lead",
		zap.String("automation_id", automationID.String()),
		zap.String("lead_id", leadID.String()),
		zap.Int64("cancelled", n),
	)
	return &CancelResult{CancelledCount: n}, nil
}
