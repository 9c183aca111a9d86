package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	appautomation "github.com/eksporyuk/backend/internal/application/automation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExecutor struct {
	polls   atomic.Int32
	sweeps  atomic.Int32
	pollErr error
}

func (f *fakeExecutor) ExecuteDue(ctx context.Context) (appautomation.ExecutionSummary, error) {
	f.polls.Add(1)
	if f.pollErr != nil {
		return appautomation.ExecutionSummary{}, f.pollErr
	}
	return appautomation.ExecutionSummary{Sent: 1}, nil
}

func (f *fakeExecutor) SweepStale(ctx context.Context) (int64, error) {
	f.sweeps.Add(1)
	return 0, nil
}

func TestNewAutomationPoller(t *testing.T) {
	_, err := NewAutomationPoller(&fakeExecutor{}, AutomationPollerConfig{Enabled: true}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewAutomationPoller(&fakeExecutor{}, AutomationPollerConfig{PollInterval: time.Second}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, p.config.SweepInterval)
	assert.Equal(t, 5*time.Minute, p.config.PassTimeout)
}

func TestAutomationPoller_StartStop(t *testing.T) {
	exec := &fakeExecutor{}
	p, err := NewAutomationPoller(exec, AutomationPollerConfig{
		Enabled:       true,
		PollInterval:  10 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())

	assert.Eventually(t, func() bool {
		return exec.polls.Load() >= 2 && exec.sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())

	polls := exec.polls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, exec.polls.Load())
}

func TestAutomationPoller_PassesOnStart(t *testing.T) {
	exec := &fakeExecutor{}
	p, err := NewAutomationPoller(exec, AutomationPollerConfig{
		Enabled:       true,
		PollInterval:  time.Hour,
		SweepInterval: time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	assert.Eventually(t, func() bool {
		return exec.polls.Load() == 1 && exec.sweeps.Load() == 1
	}, time.Second, 5*time.Millisecond, "first pass must not wait a full interval")
}

func TestAutomationPoller_Disabled(t *testing.T) {
	exec := &fakeExecutor{}
	p, err := NewAutomationPoller(exec, AutomationPollerConfig{PollInterval: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Stop(context.Background()))
}

func TestAutomationPoller_RunOnce(t *testing.T) {
	exec := &fakeExecutor{pollErr: errors.New("db down")}
	p, err := NewAutomationPoller(exec, DefaultAutomationPollerConfig(), zap.NewNop())
	require.NoError(t, err)

	p.RunOnce(context.Background())

	assert.Equal(t, int32(1), exec.polls.Load())
	assert.Equal(t, int32(1), exec.sweeps.Load(), "sweep runs even when the poll fails")
}

type passRecorder struct {
	sent, failed, skipped int
	passes                int
}

func (r *passRecorder) RecordAutomationPass(_ context.Context, sent, failed, skipped int, _ time.Duration) {
	r.passes++
	r.sent += sent
	r.failed += failed
	r.skipped += skipped
}

func TestAutomationPoller_RecordsPasses(t *testing.T) {
	rec := &passRecorder{}
	p, err := NewAutomationPoller(&fakeExecutor{}, DefaultAutomationPollerConfig(), zap.NewNop(), WithPassRecorder(rec))
	require.NoError(t, err)

	p.RunOnce(context.Background())
	p.RunOnce(context.Background())

	assert.Equal(t, 2, rec.passes)
	assert.Equal(t, 2, rec.sent)
}
