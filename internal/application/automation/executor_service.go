package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReasonUnconfirmed is recorded on claims whose worker never reported back
const ReasonUnconfirmed = "delivery unconfirmed"

// ExecutorConfig bounds step execution
type ExecutorConfig struct {
	// SendTimeout caps a single transport call
	SendTimeout time.Duration
	// ClaimTimeout is how long a claim may stay unconfirmed before the
	// sweeper fails it. It must exceed SendTimeout.
	ClaimTimeout time.Duration
	// BatchSize caps the due logs fetched per query
	BatchSize int
	// CreditCost is charged to the affiliate's credit account per message
	CreditCost int
}

// DefaultExecutorConfig returns the default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		SendTimeout:  30 * time.Second,
		ClaimTimeout: 10 * time.Minute,
		BatchSize:    50,
		CreditCost:   automation.DefaultCreditCost,
	}
}

// Outcome is the result of executing one log
type Outcome string

const (
	OutcomeSent    Outcome = "SENT"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeSkipped Outcome = "SKIPPED"
)

// ExecutionSummary counts outcomes of an ExecuteDue pass
type ExecutionSummary struct {
	Sent    int
	Failed  int
	Skipped int
}

// ExecutorService fires due execution logs through the messaging transport.
// A log is claimed with a compare-and-set before anything is sent, so a
// cancelled log or one claimed by another worker is never sent. Each message
// is paid for from the affiliate's credit account.
type ExecutorService struct {
	repo    automation.AutomationRepository
	logRepo automation.ExecutionLogRepository
	credits automation.CreditRepository
	sender  automation.MessageSender
	config  ExecutorConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewExecutorService creates a new ExecutorService
func NewExecutorService(
	repo automation.AutomationRepository,
	logRepo automation.ExecutionLogRepository,
	credits automation.CreditRepository,
	sender automation.MessageSender,
	config ExecutorConfig,
	logger *zap.Logger,
) *ExecutorService {
	defaults := DefaultExecutorConfig()
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	if config.ClaimTimeout <= config.SendTimeout {
		config.ClaimTimeout = config.SendTimeout * 2
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.CreditCost <= 0 {
		config.CreditCost = defaults.CreditCost
	}
	return &ExecutorService{
		repo:    repo,
		logRepo: logRepo,
		credits: credits,
		sender:  sender,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// FindDue returns up to BatchSize logs ready to fire
func (s *ExecutorService) FindDue(ctx context.Context) ([]*automation.ExecutionLog, error) {
	logs, err := s.logRepo.FindDue(ctx, s.now(), s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to find due executions: %w", err)
	}
	return logs, nil
}

// ExecuteDue runs due logs sequentially, fetching another batch for as long
// as the previous one came back full. A batch in which nothing was sent or
// failed ends the pass, so a failing claim query cannot spin the loop.
func (s *ExecutorService) ExecuteDue(ctx context.Context) (ExecutionSummary, error) {
	var summary ExecutionSummary
	for {
		logs, err := s.FindDue(ctx)
		if err != nil {
			return summary, err
		}
		progressed := false
		for _, log := range logs {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			outcome, err := s.Execute(ctx, log)
			if err != nil {
				s.logger.Error("execution aborted",
					zap.String("execution_id", log.ID.String()),
					zap.Error(err),
				)
			}
			switch outcome {
			case OutcomeSent:
				summary.Sent++
				progressed = true
			case OutcomeFailed:
				summary.Failed++
				progressed = true
			default:
				summary.Skipped++
			}
		}
		if len(logs) < s.config.BatchSize || !progressed || ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}
}

// Execute claims log, checks the affiliate can pay for it, renders its step
// and sends it. A lost claim is OutcomeSkipped. A short credit balance, a
// transport error or a timeout leaves the log FAILED with the reason; there
// is no automatic retry. A delivered message is charged to the credit
// account and counted on its step.
func (s *ExecutorService) Execute(ctx context.Context, log *automation.ExecutionLog) (Outcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "executor", "execute")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrExecutionID, log.ID.String(),
		telemetry.SpanAttrAutomationID, log.AutomationID.String(),
		telemetry.SpanAttrLeadID, log.LeadID.String(),
	)

	claimed, err := s.logRepo.Claim(ctx, log.ID, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return OutcomeSkipped, fmt.Errorf("failed to claim execution: %w", err)
	}
	if !claimed {
		s.logger.Debug("execution already claimed or cancelled",
			zap.String("execution_id", log.ID.String()),
		)
		return OutcomeSkipped, nil
	}

	step, err := s.repo.FindStep(ctx, log.StepID)
	if errors.Is(err, automation.ErrStepNotFound) {
		return s.fail(ctx, log, "step no longer exists")
	}
	if err != nil {
		telemetry.RecordError(span, err)
		// Claimed but not sent; the sweeper fails it after the claim timeout.
		return OutcomeSkipped, fmt.Errorf("failed to load step: %w", err)
	}

	account, err := s.credits.FindByAffiliate(ctx, log.AffiliateID)
	if err != nil && !errors.Is(err, automation.ErrCreditNotFound) {
		telemetry.RecordError(span, err)
		return OutcomeSkipped, fmt.Errorf("failed to load credit account: %w", err)
	}
	if err := account.Covers(s.config.CreditCost); err != nil {
		return s.fail(ctx, log, err.Error())
	}

	msg := automation.BuildMessage(log, step)
	sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	err = s.sender.Send(sendCtx, msg)
	cancel()
	if err != nil {
		telemetry.RecordError(span, err)
		reason := fmt.Sprintf("%s: %v", automation.ErrTransportFailure.Code, err)
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("%s: send timed out after %s", automation.ErrTransportFailure.Code, s.config.SendTimeout)
		}
		return s.fail(ctx, log, reason)
	}

	confirmed, err := s.logRepo.ConfirmSent(ctx, log.ID, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return OutcomeSent, fmt.Errorf("failed to confirm execution: %w", err)
	}
	if !confirmed {
		s.logger.Warn("execution sent after its claim expired",
			zap.String("execution_id", log.ID.String()),
		)
	}
	s.charge(ctx, log, step)

	s.logger.Info("automation step sent",
		zap.String("execution_id", log.ID.String()),
		zap.String("automation_id", log.AutomationID.String()),
		zap.String("lead_id", log.LeadID.String()),
		zap.Int("step_order", step.StepOrder),
	)
	return OutcomeSent, nil
}

// charge debits the delivered message and counts it on the step. The message
// is already out, so failures here are logged rather than failing the log.
func (s *ExecutorService) charge(ctx context.Context, log *automation.ExecutionLog, step *automation.Step) {
	description := fmt.Sprintf("Automation email: step %d of automation %s", step.StepOrder, log.AutomationID)
	_, err := s.credits.Post(ctx, log.AffiliateID, func(a *automation.CreditAccount) (*automation.CreditTransaction, error) {
		return a.Deduct(s.config.CreditCost, log.ID.String(), description)
	})
	if err != nil {
		s.logger.Error("failed to charge credit for sent message",
			zap.String("execution_id", log.ID.String()),
			zap.String("affiliate_id", log.AffiliateID.String()),
			zap.Error(err),
		)
	}
	if err := s.repo.IncrementSentCount(ctx, step.ID); err != nil {
		s.logger.Warn("failed to count sent message",
			zap.String("step_id", step.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *ExecutorService) fail(ctx context.Context, log *automation.ExecutionLog, reason string) (Outcome, error) {
	s.logger.Warn("automation step failed",
		zap.String("execution_id", log.ID.String()),
		zap.String("automation_id", log.AutomationID.String()),
		zap.String("lead_id", log.LeadID.String()),
		zap.String("reason", reason),
	)
	if _, err := s.logRepo.MarkFailed(ctx, log.ID, s.now(), reason); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to record execution failure: %w", err)
	}
	return OutcomeFailed, nil
}

// SweepStale fails claims older than ClaimTimeout that were never confirmed,
// left behind by a worker that died mid-send.
func (s *ExecutorService) SweepStale(ctx context.Context) (int64, error) {
	n, err := s.logRepo.FailStaleClaims(ctx, s.now().Add(-s.config.ClaimTimeout), ReasonUnconfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale executions: %w", err)
	}
	if n > 0 {
		s.logger.Warn("stale executions failed", zap.Int64("count", n))
	}
	return n, nil
}

// Config returns the executor configuration
func (s *ExecutorService) Config() ExecutorConfig {
	return s.config
}
