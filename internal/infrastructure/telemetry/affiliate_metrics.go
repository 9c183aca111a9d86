package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// OutboxStatsProvider reports outbox entry counts per status.
type OutboxStatsProvider interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// AffiliateMetrics records ledger and automation business metrics. Ledger
// counters are fed from domain events on the bus, so they count only
// committed state changes.
type AffiliateMetrics struct {
	logger *zap.Logger

	revenueAdmitted     *Counter
	commissionDecisions *Counter
	commissionAmount    *FloatCounter
	payouts             *Counter
	payoutAmount        *FloatCounter
	automationSends     *Counter
	pollDuration        *Histogram
	outboxEntries       *Gauge

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAffiliateMetrics creates the business instruments on meter.
func NewAffiliateMetrics(meter metric.Meter, logger *zap.Logger) (*AffiliateMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &AffiliateMetrics{logger: logger, stopChan: make(chan struct{})}

	var err error
	if m.revenueAdmitted, err = NewCounter(meter, "affiliate_revenue_admitted_total",
		"Pending revenue records admitted", "{records}"); err != nil {
		return nil, err
	}
	if m.commissionDecisions, err = NewCounter(meter, "affiliate_commission_decisions_total",
		"Commission approvals and rejections", "{decisions}"); err != nil {
		return nil, err
	}
	if m.commissionAmount, err = NewFloatCounter(meter, "affiliate_commission_credited_amount_total",
		"Commission amount credited to wallets", "{IDR}"); err != nil {
		return nil, err
	}
	if m.payouts, err = NewCounter(meter, "affiliate_payouts_total",
		"Payout lifecycle transitions", "{payouts}"); err != nil {
		return nil, err
	}
	if m.payoutAmount, err = NewFloatCounter(meter, "affiliate_payout_completed_amount_total",
		"Amount paid out through completed payouts", "{IDR}"); err != nil {
		return nil, err
	}
	if m.automationSends, err = NewCounter(meter, "automation_executions_total",
		"Automation step executions by outcome", "{executions}"); err != nil {
		return nil, err
	}
	if m.pollDuration, err = NewHistogram(meter, "automation_poll_duration_seconds",
		"Duration of automation poll passes", "s", PassDurationBuckets...); err != nil {
		return nil, err
	}
	if m.outboxEntries, err = NewGauge(meter, "outbox_entries",
		"Outbox entries by status", "{entries}"); err != nil {
		return nil, err
	}
	return m, nil
}

// EventTypes implements shared.EventHandler.
func (m *AffiliateMetrics) EventTypes() []string {
	return []string{
		affiliate.EventTypeRevenueAdmitted,
		affiliate.EventTypeCommissionApproved,
		affiliate.EventTypeCommissionRejected,
		affiliate.EventTypePayoutRequested,
		affiliate.EventTypePayoutApproved,
		affiliate.EventTypePayoutRejected,
		affiliate.EventTypePayoutCompleted,
	}
}

// Handle implements shared.EventHandler. It never fails.
func (m *AffiliateMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *affiliate.RevenueAdmittedEvent:
		m.revenueAdmitted.Inc(ctx)
	case *affiliate.CommissionApprovedEvent:
		m.commissionDecisions.Inc(ctx, AttrDecision.String("approved"))
		m.commissionAmount.Add(ctx, e.FinalAmount.InexactFloat64())
	case *affiliate.CommissionRejectedEvent:
		m.commissionDecisions.Inc(ctx, AttrDecision.String("rejected"))
	case *affiliate.PayoutEvent:
		m.payouts.Inc(ctx, AttrPayoutStatus.String(string(e.Status)))
		if e.EventType() == affiliate.EventTypePayoutCompleted {
			m.payoutAmount.Add(ctx, e.Amount.InexactFloat64())
		}
	}
	return nil
}

// RecordAutomationPass records the outcome counts of one poll pass.
func (m *AffiliateMetrics) RecordAutomationPass(ctx context.Context, sent, failed, skipped int, d time.Duration) {
	m.automationSends.Add(ctx, int64(sent), AttrOutcome.String("sent"))
	m.automationSends.Add(ctx, int64(failed), AttrOutcome.String("failed"))
	m.automationSends.Add(ctx, int64(skipped), AttrOutcome.String("skipped"))
	m.pollDuration.RecordDuration(ctx, d)
}

// CollectOutbox records the current outbox counts once.
func (m *AffiliateMetrics) CollectOutbox(ctx context.Context, provider OutboxStatsProvider) {
	counts, err := provider.CountByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect outbox metrics", zap.Error(err))
		return
	}
	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		m.outboxEntries.Record(ctx, counts[status], AttrOutboxStatus.String(string(status)))
	}
}

// StartOutboxCollection samples outbox counts every interval until Stop.
func (m *AffiliateMetrics) StartOutboxCollection(ctx context.Context, provider OutboxStatsProvider, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.CollectOutbox(ctx, provider)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			case <-ticker.C:
				m.CollectOutbox(ctx, provider)
			}
		}
	}()
}

// Stop ends periodic collection.
func (m *AffiliateMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

var _ shared.EventHandler = (*AffiliateMetrics)(nil)
