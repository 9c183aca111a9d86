package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// recordingSender captures messages; err or block make sends fail
type recordingSender struct {
	mu    sync.Mutex
	sent  []automation.Message
	err   error
	block bool
}

func (s *recordingSender) Send(ctx context.Context, msg automation.Message) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []automation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]automation.Message(nil), s.sent...)
}

type automationEnv struct {
	repo        *persistence.GormAutomationRepository
	logRepo     *persistence.GormExecutionLogRepository
	creditRepo  *persistence.GormCreditRepository
	definitions *DefinitionService
	scheduler   *SchedulerService
	executor    *ExecutorService
	credits     *CreditService
	sender      *recordingSender
	clock       time.Time
}

func newAutomationEnv(t *testing.T, cfg ExecutorConfig) *automationEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))

	env := &automationEnv{
		repo:       persistence.NewGormAutomationRepository(db),
		logRepo:    persistence.NewGormExecutionLogRepository(db),
		creditRepo: persistence.NewGormCreditRepository(db),
		sender:     &recordingSender{},
		clock:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	logger := zap.NewNop()
	env.definitions = NewDefinitionService(env.repo, env.logRepo, logger)
	env.scheduler = NewSchedulerService(env.repo, env.logRepo, logger)
	env.executor = NewExecutorService(env.repo, env.logRepo, env.creditRepo, env.sender, cfg, logger)
	env.credits = NewCreditService(env.creditRepo, logger)

	now := func() time.Time { return env.clock }
	env.scheduler.now = now
	env.executor.now = now
	return env
}

// activeSequence creates and activates an automation with one step per
// delay and funds the affiliate with enough credits to send every step
func (e *automationEnv) activeSequence(t *testing.T, affiliateID uuid.UUID, trigger automation.TriggerType, delays ...int) *AutomationResponse {
	t.Helper()
	e.topUp(t, affiliateID, 100)
	return e.unfundedSequence(t, affiliateID, trigger, delays...)
}

func (e *automationEnv) topUp(t *testing.T, affiliateID uuid.UUID, amount int) {
	t.Helper()
	_, err := e.credits.TopUp(context.Background(), affiliateID, amount, "PAY-"+uuid.NewString(), "")
	require.NoError(t, err)
}

func (e *automationEnv) unfundedSequence(t *testing.T, affiliateID uuid.UUID, trigger automation.TriggerType, delays ...int) *AutomationResponse {
	t.Helper()
	ctx := context.Background()

	steps := make([]automation.StepInput, len(delays))
	for i, d := range delays {
		steps[i] = automation.StepInput{
			DelayHours:   d,
			EmailSubject: "Halo {{nama}}",
			EmailBody:    "Step body for {{ email }} via {{affiliate}}",
		}
	}
	created, err := e.definitions.Create(ctx, affiliateID, CreateAutomationInput{
		Name:        "Sequence",
		TriggerType: trigger,
		Steps:       steps,
	})
	require.NoError(t, err)
	activated, err := e.definitions.Activate(ctx, affiliateID, created.ID)
	require.NoError(t, err)
	return activated
}

func (e *automationEnv) trigger(t *testing.T, affiliateID, leadID uuid.UUID) *TriggerResult {
	t.Helper()
	result, err := e.scheduler.Trigger(context.Background(), TriggerInput{
		LeadID:        leadID,
		AffiliateID:   affiliateID,
		TriggerType:   automation.TriggerAfterOptin,
		Lead:          automation.LeadContact{Name: "Sari", Email: "sari@example.com", Phone: "+6281234"},
		AffiliateName: "Rina",
		TriggeredAt:   e.clock,
	})
	require.NoError(t, err)
	return result
}

func (e *automationEnv) statuses(t *testing.T, affiliateID, automationID uuid.UUID) map[string]int {
	t.Helper()
	page, err := e.definitions.ListLogs(context.Background(), affiliateID, automationID, automation.ExecutionLogFilter{PageSize: 100})
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, l := range page.Items {
		counts[l.Status]++
	}
	return counts
}

func TestScheduler_DelayedSequenceWithCancel(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()
	leadID := uuid.New()

	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 24, 72)
	start := env.clock

	result := env.trigger(t, affiliateID, leadID)
	require.Len(t, result.Scheduled, 3)
	require.Len(t, result.ExecutionIDs, 3)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, []uuid.UUID{seq.Steps[0].ID, seq.Steps[1].ID, seq.Steps[2].ID}, result.Scheduled)

	logs, err := env.definitions.ListLogs(ctx, affiliateID, seq.ID, automation.ExecutionLogFilter{PageSize: 100})
	require.NoError(t, err)
	stepByLog := make(map[uuid.UUID]uuid.UUID)
	for _, l := range logs.Items {
		stepByLog[l.ID] = l.StepID
	}
	for i, id := range result.ExecutionIDs {
		assert.Equal(t, result.Scheduled[i], stepByLog[id], "execution %d belongs to its step", i)
	}

	summary, err := env.executor.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExecutionSummary{Sent: 1}, summary)

	msgs := env.sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Halo Sari", msgs[0].Subject)
	assert.Equal(t, "Step body for sari@example.com via Rina", msgs[0].Body)
	assert.Equal(t, leadID, msgs[0].LeadID)

	env.clock = start.Add(time.Hour)
	cancelled, err := env.scheduler.Cancel(ctx, seq.ID, leadID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled.CancelledCount)

	env.clock = start.Add(80 * time.Hour)
	summary, err = env.executor.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExecutionSummary{}, summary)
	assert.Len(t, env.sender.messages(), 1)

	assert.Equal(t, map[string]int{"SENT": 1, "CANCELLED": 2}, env.statuses(t, affiliateID, seq.ID))

	again, err := env.scheduler.Cancel(ctx, seq.ID, leadID)
	require.NoError(t, err)
	assert.Zero(t, again.CancelledCount)
}

func TestScheduler_ScheduleTimes(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	affiliateID := uuid.New()
	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 24, 72)

	env.trigger(t, affiliateID, uuid.New())

	page, err := env.definitions.ListLogs(context.Background(), affiliateID, seq.ID, automation.ExecutionLogFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	got := make(map[int64]bool)
	for _, l := range page.Items {
		got[l.ScheduledFor.Unix()] = true
	}
	for _, h := range []int{0, 24, 72} {
		assert.True(t, got[env.clock.Add(time.Duration(h)*time.Hour).Unix()], "missing +%dh", h)
	}
}

func TestScheduler_RepeatedTriggerIsIdempotent(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	affiliateID := uuid.New()
	leadID := uuid.New()
	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 24)

	first := env.trigger(t, affiliateID, leadID)
	assert.Len(t, first.Scheduled, 2)

	second := env.trigger(t, affiliateID, leadID)
	assert.Empty(t, second.Scheduled)
	assert.Len(t, second.Skipped, 2)

	_, err := env.scheduler.Cancel(context.Background(), seq.ID, leadID)
	require.NoError(t, err)

	third := env.trigger(t, affiliateID, leadID)
	assert.Len(t, third.Scheduled, 2, "a cancelled lead can be enrolled again")
}

func TestScheduler_OnlyActiveAutomationsAndSteps(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()

	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 24)
	inactive := false
	_, err := env.definitions.UpdateStep(ctx, affiliateID, seq.ID, seq.Steps[1].ID, automation.StepInput{
		StepOrder: 2, DelayHours: 24, EmailSubject: "Later", EmailBody: "body", IsActive: &inactive,
	})
	require.NoError(t, err)

	_, err = env.definitions.Create(ctx, affiliateID, CreateAutomationInput{
		Name: "Draft", TriggerType: automation.TriggerAfterOptin,
		Steps: []automation.StepInput{{EmailSubject: "Draft", EmailBody: "body"}},
	})
	require.NoError(t, err)
	env.activeSequence(t, affiliateID, automation.TriggerWelcome, 0)
	env.activeSequence(t, uuid.New(), automation.TriggerAfterOptin, 0)

	result := env.trigger(t, affiliateID, uuid.New())
	assert.Len(t, result.Scheduled, 1)
}

func TestScheduler_RejectsInvalidInput(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()

	_, err := env.scheduler.Trigger(ctx, TriggerInput{LeadID: uuid.New(), AffiliateID: uuid.New(), TriggerType: "AFTER_LUNCH"})
	assert.ErrorIs(t, err, automation.ErrInvalidTrigger)

	_, err = env.scheduler.Trigger(ctx, TriggerInput{AffiliateID: uuid.New(), TriggerType: automation.TriggerWelcome})
	assert.ErrorIs(t, err, automation.ErrInvalidTriggerInput)
}

func TestExecutor_LostClaimIsSkipped(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()
	env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
	env.trigger(t, affiliateID, uuid.New())

	due, err := env.executor.FindDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := env.executor.Execute(ctx, due[0])
			assert.NoError(t, err)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []Outcome{OutcomeSent, OutcomeSkipped}, outcomes)
	assert.Len(t, env.sender.messages(), 1)
}

func TestExecutor_CancelledBeforeClaimIsNeverSent(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()
	leadID := uuid.New()
	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
	env.trigger(t, affiliateID, leadID)

	due, err := env.executor.FindDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)

	_, err = env.scheduler.Cancel(ctx, seq.ID, leadID)
	require.NoError(t, err)

	outcome, err := env.executor.Execute(ctx, due[0])
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, env.sender.messages())
}

func TestExecutor_TransportFailure(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()
	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
	env.trigger(t, affiliateID, uuid.New())
	env.sender.err = errors.New("smtp: 421 service not available")

	summary, err := env.executor.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExecutionSummary{Failed: 1}, summary)

	failed := automation.StatusFailed
	page, err := env.definitions.ListLogs(ctx, affiliateID, seq.ID, automation.ExecutionLogFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Contains(t, page.Items[0].ErrorMessage, "TRANSPORT_FAILURE")
	assert.Contains(t, page.Items[0].ErrorMessage, "421")

	// no automatic retry
	env.sender.err = nil
	summary, err = env.executor.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExecutionSummary{}, summary)
}

func TestExecutor_SendTimeout(t *testing.T) {
	env := newAutomationEnv(t, ExecutorConfig{SendTimeout: 20 * time.Millisecond, BatchSize: 10})
	ctx := context.Background()
	affiliateID := uuid.New()
	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
	env.trigger(t, affiliateID, uuid.New())
	env.sender.block = true

	summary, err := env.executor.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	page, err := env.definitions.ListLogs(ctx, affiliateID, seq.ID, automation.ExecutionLogFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Contains(t, page.Items[0].ErrorMessage, "timed out")
}

func TestExecutor_SweepStale(t *testing.T) {
	env := newAutomationEnv(t, ExecutorConfig{SendTimeout: time.Minute, ClaimTimeout: 10 * time.Minute})
	ctx := context.Background()
	affiliateID := uuid.New()
	seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 0)
	env.trigger(t, affiliateID, uuid.New())

	due, err := env.executor.FindDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)

	// a worker claimed both and died; one claim is older than the timeout
	ok, err := env.logRepo.Claim(ctx, due[0].ID, env.clock.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = env.logRepo.Claim(ctx, due[1].ID, env.clock.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	n, err := env.executor.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	failed := automation.StatusFailed
	page, err := env.definitions.ListLogs(ctx, affiliateID, seq.ID, automation.ExecutionLogFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, due[0].ID, page.Items[0].ID)
	assert.Equal(t, ReasonUnconfirmed, page.Items[0].ErrorMessage)
}

func TestExecutor_CreditConsumption(t *testing.T) {
	t.Run("short balance fails the job without sending", func(t *testing.T) {
		env := newAutomationEnv(t, DefaultExecutorConfig())
		ctx := context.Background()
		affiliateID := uuid.New()
		seq := env.unfundedSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
		env.trigger(t, affiliateID, uuid.New())

		summary, err := env.executor.ExecuteDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, ExecutionSummary{Failed: 1}, summary)
		assert.Empty(t, env.sender.messages())

		page, err := env.definitions.ListLogs(ctx, affiliateID, seq.ID, automation.ExecutionLogFilter{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "FAILED", page.Items[0].Status)
		assert.Equal(t, "Insufficient credit. Required: 1, Available: 0", page.Items[0].ErrorMessage)
	})

	t.Run("each send is debited and counted on its step", func(t *testing.T) {
		env := newAutomationEnv(t, DefaultExecutorConfig())
		ctx := context.Background()
		affiliateID := uuid.New()
		seq := env.unfundedSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 0)
		env.topUp(t, affiliateID, 5)
		env.trigger(t, affiliateID, uuid.New())
		env.trigger(t, affiliateID, uuid.New())

		summary, err := env.executor.ExecuteDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, ExecutionSummary{Sent: 4}, summary)

		balance, err := env.credits.Balance(ctx, affiliateID)
		require.NoError(t, err)
		assert.Equal(t, 1, balance.Balance)
		assert.Equal(t, 5, balance.TotalTopUp)
		assert.Equal(t, 4, balance.TotalUsed)

		txns, err := env.credits.ListTransactions(ctx, affiliateID, 1, 20)
		require.NoError(t, err)
		require.Len(t, txns.Items, 5)
		deducts := 0
		for _, tx := range txns.Items {
			if tx.Type != string(automation.CreditDeduct) {
				continue
			}
			deducts++
			assert.Equal(t, 1, tx.Amount)
			assert.Equal(t, tx.BalanceBefore-1, tx.BalanceAfter)
		}
		assert.Equal(t, 4, deducts)

		got, err := env.definitions.Get(ctx, affiliateID, seq.ID)
		require.NoError(t, err)
		for _, step := range got.Steps {
			assert.Equal(t, 2, step.SentCount, "step %d", step.StepOrder)
		}
	})

	t.Run("balance runs out mid-sequence", func(t *testing.T) {
		env := newAutomationEnv(t, DefaultExecutorConfig())
		ctx := context.Background()
		affiliateID := uuid.New()
		seq := env.unfundedSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 0)
		env.topUp(t, affiliateID, 1)
		env.trigger(t, affiliateID, uuid.New())

		summary, err := env.executor.ExecuteDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, ExecutionSummary{Sent: 1, Failed: 1}, summary)
		assert.Len(t, env.sender.messages(), 1)
		assert.Equal(t, map[string]int{"SENT": 1, "FAILED": 1}, env.statuses(t, affiliateID, seq.ID))

		balance, err := env.credits.Balance(ctx, affiliateID)
		require.NoError(t, err)
		assert.Zero(t, balance.Balance)
	})

	t.Run("editing a step keeps its sent count", func(t *testing.T) {
		env := newAutomationEnv(t, DefaultExecutorConfig())
		ctx := context.Background()
		affiliateID := uuid.New()
		seq := env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
		env.trigger(t, affiliateID, uuid.New())
		_, err := env.executor.ExecuteDue(ctx)
		require.NoError(t, err)

		_, err = env.definitions.UpdateStep(ctx, affiliateID, seq.ID, seq.Steps[0].ID, automation.StepInput{
			StepOrder: 1, EmailSubject: "Edited", EmailBody: "body",
		})
		require.NoError(t, err)

		reloaded, err := env.definitions.Get(ctx, affiliateID, seq.ID)
		require.NoError(t, err)
		assert.Equal(t, "Edited", reloaded.Steps[0].EmailSubject)
		assert.Equal(t, 1, reloaded.Steps[0].SentCount)
	})
}

func TestCreditService_TopUp(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()

	empty, err := env.credits.Balance(ctx, affiliateID)
	require.NoError(t, err)
	assert.Zero(t, empty.Balance)

	txn, err := env.credits.TopUp(ctx, affiliateID, 50, "INV-1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, txn.BalanceBefore)
	assert.Equal(t, 50, txn.BalanceAfter)
	assert.Equal(t, "Top up 50 credits", txn.Description)

	_, err = env.credits.TopUp(ctx, affiliateID, 50, "INV-1", "")
	assert.ErrorIs(t, err, automation.ErrDuplicateCredit)

	_, err = env.credits.TopUp(ctx, affiliateID, 0, "INV-2", "")
	assert.ErrorIs(t, err, automation.ErrInvalidCreditAmount)

	balance, err := env.credits.Balance(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance.Balance)
}

func TestExecutor_ExecuteDueDrainsFullBatches(t *testing.T) {
	env := newAutomationEnv(t, ExecutorConfig{BatchSize: 2})
	ctx := context.Background()
	affiliateID := uuid.New()
	env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
	for i := 0; i < 5; i++ {
		env.trigger(t, affiliateID, uuid.New())
	}

	summary, err := env.executor.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExecutionSummary{Sent: 5}, summary)

	due, err := env.executor.FindDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestExecutor_ExecuteDueStopsOnCancelledContext(t *testing.T) {
	env := newAutomationEnv(t, ExecutorConfig{BatchSize: 2})
	affiliateID := uuid.New()
	env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0)
	for i := 0; i < 3; i++ {
		env.trigger(t, affiliateID, uuid.New())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := env.executor.ExecuteDue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExecutionSummary{}, summary)
	assert.Empty(t, env.sender.messages())
}

func TestExecutor_ConfigDefaults(t *testing.T) {
	exec := NewExecutorService(nil, nil, nil, nil, ExecutorConfig{SendTimeout: time.Minute, ClaimTimeout: time.Second}, zap.NewNop())
	cfg := exec.Config()
	assert.Equal(t, 2*time.Minute, cfg.ClaimTimeout)
	assert.Equal(t, DefaultExecutorConfig().BatchSize, cfg.BatchSize)
	assert.Equal(t, automation.DefaultCreditCost, cfg.CreditCost)
}

func TestDefinitionService_Ownership(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	owner := uuid.New()
	seq := env.activeSequence(t, owner, automation.TriggerAfterOptin, 0)

	_, err := env.definitions.Get(ctx, uuid.New(), seq.ID)
	assert.ErrorIs(t, err, automation.ErrNotOwner)
	_, err = env.definitions.Deactivate(ctx, uuid.New(), seq.ID)
	assert.ErrorIs(t, err, automation.ErrNotOwner)
	_, err = env.definitions.ListLogs(ctx, uuid.New(), seq.ID, automation.ExecutionLogFilter{})
	assert.ErrorIs(t, err, automation.ErrNotOwner)

	_, err = env.definitions.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, automation.ErrAutomationNotFound)
}

func TestDefinitionService_StepRules(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()

	draft, err := env.definitions.Create(ctx, affiliateID, CreateAutomationInput{
		Name: "Follow up", TriggerType: automation.TriggerPendingPayment,
	})
	require.NoError(t, err)
	assert.False(t, draft.IsActive)

	_, err = env.definitions.Activate(ctx, affiliateID, draft.ID)
	assert.ErrorIs(t, err, automation.ErrNoActiveSteps)

	_, err = env.definitions.AddStep(ctx, affiliateID, draft.ID, automation.StepInput{DelayHours: 48, EmailSubject: "A", EmailBody: "a"})
	require.NoError(t, err)
	_, err = env.definitions.Activate(ctx, affiliateID, draft.ID)
	require.NoError(t, err)

	_, err = env.definitions.AddStep(ctx, affiliateID, draft.ID, automation.StepInput{DelayHours: 24, EmailSubject: "B", EmailBody: "b"})
	assert.ErrorIs(t, err, automation.ErrNonMonotonicDelays)

	withStep, err := env.definitions.AddStep(ctx, affiliateID, draft.ID, automation.StepInput{DelayHours: 72, EmailSubject: "C", EmailBody: "c"})
	require.NoError(t, err)
	require.Len(t, withStep.Steps, 2)
	assert.Equal(t, 2, withStep.Steps[1].StepOrder)

	removed, err := env.definitions.RemoveStep(ctx, affiliateID, draft.ID, withStep.Steps[1].ID)
	require.NoError(t, err)
	assert.Len(t, removed.Steps, 1)

	renamed, err := env.definitions.Update(ctx, affiliateID, draft.ID, "Payment reminder", automation.TriggerPendingPayment)
	require.NoError(t, err)
	assert.Equal(t, "Payment reminder", renamed.Name)
}

func TestDefinitionService_Stats(t *testing.T) {
	env := newAutomationEnv(t, DefaultExecutorConfig())
	ctx := context.Background()
	affiliateID := uuid.New()
	env.activeSequence(t, affiliateID, automation.TriggerAfterOptin, 0, 0)
	_, err := env.definitions.Create(ctx, affiliateID, CreateAutomationInput{Name: "Draft", TriggerType: automation.TriggerWelcome})
	require.NoError(t, err)

	env.trigger(t, affiliateID, uuid.New())
	due, err := env.executor.FindDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)

	_, err = env.executor.Execute(ctx, due[0])
	require.NoError(t, err)
	env.sender.err = errors.New("bounce")
	_, err = env.executor.Execute(ctx, due[1])
	require.NoError(t, err)

	stats, err := env.definitions.GetStats(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAutomations)
	assert.Equal(t, int64(1), stats.ActiveAutomations)
	assert.Equal(t, int64(1), stats.Jobs["SENT"])
	assert.Equal(t, int64(1), stats.Jobs["FAILED"])
	assert.Equal(t, int64(0), stats.Jobs["SCHEDULED"])
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
}
