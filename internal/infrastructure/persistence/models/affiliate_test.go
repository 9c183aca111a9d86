package models

import (
	"testing"
	"time"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "affiliate_wallets", WalletModel{}.TableName())
	assert.Equal(t, "affiliate_ledger_entries", LedgerEntryModel{}.TableName())
	assert.Equal(t, "affiliate_pending_revenues", PendingRevenueModel{}.TableName())
	assert.Equal(t, "affiliate_payouts", PayoutModel{}.TableName())
	assert.Equal(t, "affiliate_automations", AutomationModel{}.TableName())
	assert.Equal(t, "affiliate_automation_steps", AutomationStepModel{}.TableName())
	assert.Equal(t, "affiliate_automation_execution_logs", ExecutionLogModel{}.TableName())
	assert.Equal(t, "domain_event_outbox", OutboxEntryModel{}.TableName())
}

func TestPayoutModel_AccountDetails(t *testing.T) {
	wallet, err := affiliate.NewWallet(uuid.New())
	require.NoError(t, err)
	wallet.Balance = decimal.NewFromInt(100000)

	payout, err := affiliate.NewPayout(wallet, decimal.NewFromInt(60000), affiliate.PayoutMethodBankTransfer, affiliate.AccountDetails{
		BankName:      "BCA",
		AccountNumber: "1234567890",
		AccountName:   "Budi Santoso",
	})
	require.NoError(t, err)

	m := PayoutModelFromDomain(payout)
	assert.Equal(t, "BCA", m.BankName)
	assert.Equal(t, payout.Version, m.Version)

	back := m.ToDomain()
	assert.Equal(t, payout.ID, back.ID)
	assert.Equal(t, payout.Account, back.Account)
	assert.True(t, payout.Amount.Equal(back.Amount))
	assert.Empty(t, back.GetDomainEvents())
}

func TestPendingRevenueModel_KeepsAdjustment(t *testing.T) {
	adjusted := decimal.NewFromInt(5000)
	decider := uuid.New()
	now := time.Now()
	m := &PendingRevenueModel{
		AffiliateID:         uuid.New(),
		SourceTransactionID: "TX-1",
		ComputedAmount:      decimal.NewFromInt(7000),
		Status:              affiliate.RevenueStatusApproved,
		AdjustedAmount:      &adjusted,
		DecidedBy:           &decider,
		DecidedAt:           &now,
	}
	m.ID = uuid.New()
	m.Version = 2

	r := m.ToDomain()
	assert.Equal(t, 2, r.Version)
	require.NotNil(t, r.AdjustedAmount)
	assert.True(t, r.AdjustedAmount.Equal(adjusted))
	assert.Equal(t, &decider, r.DecidedBy)
}

func TestExecutionLogModel_TriggerData(t *testing.T) {
	a, err := automation.NewAutomation(uuid.New(), "Welcome", automation.TriggerWelcome)
	require.NoError(t, err)
	step, err := a.AddStep(automation.StepInput{DelayHours: 24, EmailSubject: "Hi", EmailBody: "Hello {name}"})
	require.NoError(t, err)

	log := automation.NewExecutionLog(a, step, automation.TriggerContext{
		LeadID:      uuid.New(),
		Lead:        automation.LeadContact{Name: "Sari", Email: "sari@example.com"},
		TriggerData: map[string]string{"zoom_link": "https://zoom.us/j/1"},
		TriggeredAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	})

	m, err := ExecutionLogModelFromDomain(log)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zoom_link":"https://zoom.us/j/1"}`, string(m.TriggerData))
	assert.Equal(t, "sari@example.com", m.LeadEmail)

	back := m.ToDomain()
	assert.Equal(t, "https://zoom.us/j/1", back.TriggerData["zoom_link"])
	assert.Equal(t, log.ScheduledFor, back.ScheduledFor)
	assert.Equal(t, log.Lead, back.Lead)
}

func TestExecutionLogModel_EmptyTriggerData(t *testing.T) {
	m := &ExecutionLogModel{ID: uuid.New(), Status: automation.StatusScheduled}
	l := m.ToDomain()
	assert.NotNil(t, l.TriggerData)
	assert.Empty(t, l.TriggerData)
}
