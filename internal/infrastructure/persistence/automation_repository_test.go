package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createTestAutomation(t *testing.T, db *gorm.DB, affiliateID uuid.UUID, delays ...int) *automation.Automation {
	t.Helper()
	a, err := automation.NewAutomation(affiliateID, "Follow up", automation.TriggerAfterOptin)
	require.NoError(t, err)
	for _, d := range delays {
		_, err := a.AddStep(automation.StepInput{DelayHours: d, EmailSubject: "Hi {name}", EmailBody: "Body"})
		require.NoError(t, err)
	}
	require.NoError(t, NewGormAutomationRepository(db).Create(context.Background(), a))
	return a
}

func TestGormAutomationRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAutomationRepository(db)
	ctx := context.Background()

	a := createTestAutomation(t, db, uuid.New(), 0, 24, 72)

	found, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, found.Name)
	assert.False(t, found.IsActive)
	require.Len(t, found.Steps, 3)
	for i, s := range found.Steps {
		assert.Equal(t, i+1, s.StepOrder)
	}
	assert.Equal(t, 72, found.Steps[2].DelayHours)

	step, err := repo.FindStep(ctx, found.Steps[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 24, step.DelayHours)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, automation.ErrAutomationNotFound)
}

func TestGormAutomationRepository_Save(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAutomationRepository(db)
	ctx := context.Background()

	a := createTestAutomation(t, db, uuid.New(), 0, 24)

	t.Run("reordering steps keeps their ids", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		version := loaded.Version

		first, second := loaded.Steps[0], loaded.Steps[1]
		_, err = loaded.UpdateStep(first.ID, automation.StepInput{StepOrder: 3, DelayHours: 48, EmailSubject: "Later", EmailBody: "Body"})
		require.NoError(t, err)
		inactive := false
		_, err = loaded.UpdateStep(second.ID, automation.StepInput{StepOrder: 1, DelayHours: 24, EmailSubject: "Sooner", EmailBody: "Body", IsActive: &inactive})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, loaded, version))

		stored, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, stored.Steps, 2)
		assert.Equal(t, second.ID, stored.Steps[0].ID)
		assert.False(t, stored.Steps[0].IsActive)
		assert.Equal(t, first.ID, stored.Steps[1].ID)
		assert.Equal(t, 3, stored.Steps[1].StepOrder)
		assert.Equal(t, version+2, stored.Version)
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		one, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		two, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)

		v := one.Version
		require.NoError(t, one.Activate())
		require.NoError(t, repo.Save(ctx, one, v))

		require.NoError(t, two.Update("Renamed", automation.TriggerAfterOptin))
		err = repo.Save(ctx, two, v)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		stored, err := repo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
		assert.Equal(t, "Follow up", stored.Name)
	})

	t.Run("unknown automation", func(t *testing.T) {
		ghost, err := automation.NewAutomation(uuid.New(), "Ghost", automation.TriggerWelcome)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, ghost, 1), automation.ErrAutomationNotFound)
	})
}

func TestGormAutomationRepository_SaveKeepsExecutionHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAutomationRepository(db)
	logs := NewGormExecutionLogRepository(db)
	ctx := context.Background()

	a := createTestAutomation(t, db, uuid.New(), 0, 24, 48)
	first, second, third := a.Steps[0], a.Steps[1], a.Steps[2]
	leadID := uuid.New()
	schedule := func(step *automation.Step) *automation.ExecutionLog {
		return automation.NewExecutionLog(a, step, automation.TriggerContext{
			LeadID:      leadID,
			Lead:        automation.LeadContact{Name: "Rina", Email: "rina@example.com"},
			TriggeredAt: time.Now().Add(-time.Hour),
		})
	}
	sent := schedule(first)
	pending := schedule(second)
	for _, l := range []*automation.ExecutionLog{sent, pending} {
		ok, err := logs.CreateIfAbsent(ctx, l)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := logs.Claim(ctx, sent.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	version := loaded.Version
	require.NoError(t, loaded.Update("Renamed", automation.TriggerAfterOptin))
	require.NoError(t, loaded.RemoveStep(third.ID))
	_, err = loaded.UpdateStep(first.ID, automation.StepInput{StepOrder: 9, DelayHours: 72, EmailSubject: "Moved", EmailBody: "Body"})
	require.NoError(t, err)
	added, err := loaded.AddStep(automation.StepInput{DelayHours: 96, EmailSubject: "New", EmailBody: "Body"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, loaded, version))

	stored, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(stored.Steps))
	for i, s := range stored.Steps {
		ids[i] = s.ID
	}
	assert.Equal(t, []uuid.UUID{second.ID, first.ID, added.ID}, ids)
	assert.Equal(t, "Moved", stored.Steps[1].EmailSubject)

	history, total, err := logs.List(ctx, automation.ExecutionLogFilter{AutomationID: &a.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, history, 2)

	got, err := logs.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.StatusScheduled, got.Status)

	ok, err = logs.CreateIfAbsent(ctx, schedule(first))
	require.NoError(t, err)
	assert.False(t, ok, "a step already sent to the lead is not scheduled again")
}

func TestGormAutomationRepository_Queries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAutomationRepository(db)
	ctx := context.Background()
	affiliateID := uuid.New()

	active := createTestAutomation(t, db, affiliateID, 0, 24)
	v := active.Version
	require.NoError(t, active.Activate())
	require.NoError(t, repo.Save(ctx, active, v))
	createTestAutomation(t, db, affiliateID, 1)
	createTestAutomation(t, db, uuid.New(), 0)

	found, err := repo.FindActiveByTrigger(ctx, affiliateID, automation.TriggerAfterOptin)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, active.ID, found[0].ID)
	assert.Len(t, found[0].ActiveSteps(), 2)

	none, err := repo.FindActiveByTrigger(ctx, affiliateID, automation.TriggerWelcome)
	require.NoError(t, err)
	assert.Empty(t, none)

	total, activeCount, err := repo.CountByAffiliate(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), activeCount)

	isActive := false
	list, count, err := repo.ListByAffiliate(ctx, affiliateID, automation.AutomationFilter{IsActive: &isActive, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Steps, 1)
}

func TestGormExecutionLogRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormExecutionLogRepository(db)
	ctx := context.Background()
	affiliateID := uuid.New()
	a := createTestAutomation(t, db, affiliateID, 0, 24)
	leadID := uuid.New()
	triggeredAt := time.Now().Add(-time.Hour)

	schedule := func(step *automation.Step) *automation.ExecutionLog {
		return automation.NewExecutionLog(a, step, automation.TriggerContext{
			LeadID:      leadID,
			Lead:        automation.LeadContact{Name: "Sari", Email: "sari@example.com"},
			TriggeredAt: triggeredAt,
		})
	}

	now := schedule(a.Steps[0])
	later := schedule(a.Steps[1])

	t.Run("one live log per step and lead", func(t *testing.T) {
		ok, err := repo.CreateIfAbsent(ctx, now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.CreateIfAbsent(ctx, later)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.CreateIfAbsent(ctx, schedule(a.Steps[0]))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("only the due log is returned", func(t *testing.T) {
		due, err := repo.FindDue(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, now.ID, due[0].ID)
		assert.Equal(t, "Sari", due[0].Lead.Name)
	})

	t.Run("claim is won once", func(t *testing.T) {
		ok, err := repo.Claim(ctx, now.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Claim(ctx, now.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ConfirmSent(ctx, now.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkFailed(ctx, now.ID, time.Now(), "late failure")
		require.NoError(t, err)
		assert.False(t, ok, "confirmed logs stay SENT")

		stored, err := repo.FindByID(ctx, now.ID)
		require.NoError(t, err)
		assert.Equal(t, automation.StatusSent, stored.Status)
		assert.NotNil(t, stored.StartedAt)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("cancel leaves sent logs alone", func(t *testing.T) {
		n, err := repo.CancelScheduled(ctx, a.ID, leadID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stored, err := repo.FindByID(ctx, later.ID)
		require.NoError(t, err)
		assert.Equal(t, automation.StatusCancelled, stored.Status)

		ok, err := repo.Claim(ctx, later.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("a cancelled step can be scheduled again", func(t *testing.T) {
		ok, err := repo.CreateIfAbsent(ctx, schedule(a.Steps[1]))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("stale claims are failed", func(t *testing.T) {
		lead2 := uuid.New()
		log := automation.NewExecutionLog(a, a.Steps[0], automation.TriggerContext{LeadID: lead2, TriggeredAt: triggeredAt})
		ok, err := repo.CreateIfAbsent(ctx, log)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = repo.Claim(ctx, log.ID, time.Now().Add(-20*time.Minute))
		require.NoError(t, err)
		require.True(t, ok)

		n, err := repo.FailStaleClaims(ctx, time.Now().Add(-10*time.Minute), "delivery unconfirmed")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stored, err := repo.FindByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, automation.StatusFailed, stored.Status)
		assert.Equal(t, "delivery unconfirmed", stored.ErrorMessage)
	})

	t.Run("counts and lists", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx, affiliateID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[automation.StatusSent])
		assert.Equal(t, int64(1), counts[automation.StatusFailed])
		assert.Equal(t, int64(1), counts[automation.StatusCancelled])
		assert.Equal(t, int64(1), counts[automation.StatusScheduled])

		logs, total, err := repo.List(ctx, automation.ExecutionLogFilter{LeadID: &leadID, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 3)
	})
}
