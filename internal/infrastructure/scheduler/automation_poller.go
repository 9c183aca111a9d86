// Package scheduler runs the background loops that fire automation steps.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	appautomation "github.com/eksporyuk/backend/internal/application/automation"
	"go.uber.org/zap"
)

// DueExecutor executes due automation steps and fails abandoned claims
type DueExecutor interface {
	ExecuteDue(ctx context.Context) (appautomation.ExecutionSummary, error)
	SweepStale(ctx context.Context) (int64, error)
}

// PassRecorder receives the outcome of each poll pass
type PassRecorder interface {
	RecordAutomationPass(ctx context.Context, sent, failed, skipped int, d time.Duration)
}

// AutomationPollerConfig holds configuration for the automation poller
type AutomationPollerConfig struct {
	// Enabled determines if the poller is active
	Enabled bool

	// PollInterval is how often due steps are fetched
	PollInterval time.Duration

	// SweepInterval is how often stale claims are failed
	SweepInterval time.Duration

	// PassTimeout bounds a single poll pass
	PassTimeout time.Duration
}

// DefaultAutomationPollerConfig returns default configuration
func DefaultAutomationPollerConfig() AutomationPollerConfig {
	return AutomationPollerConfig{
		Enabled:       true,
		PollInterval:  30 * time.Second,
		SweepInterval: time.Minute,
		PassTimeout:   5 * time.Minute,
	}
}

// AutomationPoller periodically executes due automation steps. Passes never
// overlap: a tick that arrives while a pass is running is dropped.
type AutomationPoller struct {
	executor DueExecutor
	config   AutomationPollerConfig
	logger   *zap.Logger
	recorder PassRecorder

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// PollerOption configures an AutomationPoller
type PollerOption func(*AutomationPoller)

// WithPassRecorder reports every pass to r
func WithPassRecorder(r PassRecorder) PollerOption {
	return func(p *AutomationPoller) {
		p.recorder = r
	}
}

// NewAutomationPoller creates a new automation poller
func NewAutomationPoller(executor DueExecutor, config AutomationPollerConfig, logger *zap.Logger, opts ...PollerOption) (*AutomationPoller, error) {
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultAutomationPollerConfig().SweepInterval
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = DefaultAutomationPollerConfig().PassTimeout
	}
	p := &AutomationPoller{
		executor: executor,
		config:   config,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start starts the poll and sweep loops
func (p *AutomationPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	if !p.config.Enabled {
		p.mu.Unlock()
		p.logger.Info("Automation poller is disabled")
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(2)
	go p.loop(ctx, p.config.PollInterval, p.poll)
	go p.loop(ctx, p.config.SweepInterval, p.sweep)

	p.logger.Info("Automation poller started",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Duration("sweep_interval", p.config.SweepInterval),
	)
	return nil
}

// Stop stops the poller, waiting for an in-flight pass to finish
func (p *AutomationPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Automation poller stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Automation poller stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the poller loops are active
func (p *AutomationPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

// loop runs pass once on start, then on every tick
func (p *AutomationPoller) loop(ctx context.Context, interval time.Duration, pass func(context.Context)) {
	defer p.wg.Done()

	pass(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// RunOnce executes one poll pass followed by a stale sweep
func (p *AutomationPoller) RunOnce(ctx context.Context) {
	p.poll(ctx)
	p.sweep(ctx)
}

func (p *AutomationPoller) poll(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, p.config.PassTimeout)
	defer cancel()

	start := time.Now()
	summary, err := p.executor.ExecuteDue(passCtx)
	if err != nil {
		p.logger.Error("Automation poll failed", zap.Error(err))
		return
	}
	if p.recorder != nil {
		p.recorder.RecordAutomationPass(ctx, summary.Sent, summary.Failed, summary.Skipped, time.Since(start))
	}
	if summary.Sent+summary.Failed+summary.Skipped == 0 {
		return
	}
	p.logger.Info("Automation poll completed",
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
}

func (p *AutomationPoller) sweep(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, p.config.PassTimeout)
	defer cancel()

	if _, err := p.executor.SweepStale(passCtx); err != nil {
		p.logger.Error("Stale execution sweep failed", zap.Error(err))
	}
}
