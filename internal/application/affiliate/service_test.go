package affiliate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	appaff "github.com/eksporyuk/backend/internal/application/affiliate"
	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/event"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	ledger     *appaff.LedgerService
	admission  *appaff.RevenueAdmissionService
	commission *appaff.CommissionApprovalService
	payouts    *appaff.PayoutService
}

func newTestEnv(t *testing.T, minPayout decimal.Decimal) *testEnv {
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

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := persistence.NewGormAffiliateTransactionScope(db, event.NewOutboxPublisher(serializer))
	logger := zap.NewNop()

	return &testEnv{
		db: db,
		ledger: appaff.NewLedgerService(scope,
			persistence.NewGormWalletRepository(db),
			persistence.NewGormLedgerEntryRepository(db),
			logger),
		admission:  appaff.NewRevenueAdmissionService(scope, persistence.NewGormPendingRevenueRepository(db), logger),
		commission: appaff.NewCommissionApprovalService(scope, logger),
		payouts: appaff.NewPayoutService(scope,
			persistence.NewGormPayoutRepository(db),
			appaff.PayoutConfig{MinAmount: minPayout},
			logger),
	}
}

// earn admits and approves a commission for the affiliate
func (e *testEnv) earn(t *testing.T, affiliateID uuid.UUID, amount int64) {
	t.Helper()
	ctx := context.Background()
	revenue, err := e.admission.Admit(ctx, "TX-"+uuid.NewString(), affiliateID, decimal.NewFromInt(amount))
	require.NoError(t, err)
	_, err = e.commission.Approve(ctx, revenue.ID, uuid.New(), nil)
	require.NoError(t, err)
}

func (e *testEnv) outboxTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, e.db.Model(&models.OutboxEntryModel{}).Pluck("event_type", &types).Error)
	return types
}

func (e *testEnv) assertReconciled(t *testing.T, walletID uuid.UUID) {
	t.Helper()
	result, err := e.ledger.Reconcile(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, result.Consistent, "balance %s entries %s", result.Balance, result.EntrySum)
}

func bankAccount() affiliate.AccountDetails {
	return affiliate.AccountDetails{BankName: "BCA", AccountNumber: "1234567890", AccountName: "Budi Santoso"}
}

func TestPayoutService_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	userID := uuid.New()

	env.earn(t, userID, 100000)

	first, err := env.payouts.RequestPayout(ctx, appaff.PayoutRequest{
		UserID: userID, Amount: decimal.NewFromInt(60000),
		Method: affiliate.PayoutMethodBankTransfer, Account: bankAccount(),
	})
	require.NoError(t, err)
	assert.Equal(t, affiliate.PayoutStatusPending, first.Status)

	_, err = env.payouts.RequestPayout(ctx, appaff.PayoutRequest{
		UserID: userID, Amount: decimal.NewFromInt(50000),
		Method: affiliate.PayoutMethodBankTransfer, Account: bankAccount(),
	})
	assert.ErrorIs(t, err, affiliate.ErrInsufficientFunds)

	wallet, err := env.ledger.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(40000)), wallet.Balance.String())
	assert.True(t, wallet.TotalPayouts.Equal(decimal.NewFromInt(60000)))

	var payoutCount int64
	require.NoError(t, env.db.Model(&models.PayoutModel{}).Count(&payoutCount).Error)
	assert.Equal(t, int64(1), payoutCount)

	entries, err := env.ledger.ListEntries(ctx, wallet.ID, affiliate.LedgerEntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), entries.Total)

	env.assertReconciled(t, wallet.ID)
}

func TestPayoutService_NoWallet(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)

	_, err := env.payouts.RequestPayout(context.Background(), appaff.PayoutRequest{
		UserID: uuid.New(), Amount: decimal.NewFromInt(1000),
		Method: affiliate.PayoutMethodEWallet, Account: bankAccount(),
	})
	assert.ErrorIs(t, err, affiliate.ErrInsufficientFunds)
}

func TestPayoutService_MinimumAmount(t *testing.T) {
	env := newTestEnv(t, decimal.NewFromInt(50000))
	userID := uuid.New()
	env.earn(t, userID, 100000)

	_, err := env.payouts.RequestPayout(context.Background(), appaff.PayoutRequest{
		UserID: userID, Amount: decimal.NewFromInt(49999),
		Method: affiliate.PayoutMethodBankTransfer, Account: bankAccount(),
	})
	assert.ErrorIs(t, err, affiliate.ErrBelowMinimumPayout)
	assert.Contains(t, err.Error(), "50000")

	_, err = env.payouts.RequestPayout(context.Background(), appaff.PayoutRequest{
		UserID: userID, Amount: decimal.NewFromInt(50000),
		Method: affiliate.PayoutMethodBankTransfer, Account: bankAccount(),
	})
	assert.NoError(t, err)
}

func TestPayoutService_RejectReversesFunds(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	userID := uuid.New()
	admin := uuid.New()
	env.earn(t, userID, 100000)

	payout, err := env.payouts.RequestPayout(ctx, appaff.PayoutRequest{
		UserID: userID, Amount: decimal.NewFromInt(75000),
		Method: affiliate.PayoutMethodBankTransfer, Account: bankAccount(),
	})
	require.NoError(t, err)

	rejected, err := env.payouts.Reject(ctx, payout.ID, admin, "account name mismatch")
	require.NoError(t, err)
	assert.Equal(t, affiliate.PayoutStatusRejected, rejected.Status)

	wallet, err := env.ledger.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(100000)))
	assert.True(t, wallet.TotalPayouts.IsZero())

	kind := affiliate.EntryKindPayoutReversal
	reversals, err := env.ledger.ListEntries(ctx, wallet.ID, affiliate.LedgerEntryFilter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, reversals.Items, 1)
	assert.Equal(t, payout.ID, reversals.Items[0].ReferenceID)

	_, err = env.payouts.Reject(ctx, payout.ID, admin, "again")
	assert.ErrorIs(t, err, affiliate.ErrAlreadyDecided)
	_, err = env.payouts.Approve(ctx, payout.ID, admin)
	assert.ErrorIs(t, err, affiliate.ErrAlreadyDecided)

	env.assertReconciled(t, wallet.ID)
}

func TestPayoutService_ApproveAndComplete(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	userID := uuid.New()
	admin := uuid.New()
	env.earn(t, userID, 100000)

	payout, err := env.payouts.RequestPayout(ctx, appaff.PayoutRequest{
		UserID: userID, Amount: decimal.NewFromInt(100000),
		Method: affiliate.PayoutMethodBankTransfer, Account: bankAccount(),
	})
	require.NoError(t, err)

	_, err = env.payouts.Complete(ctx, payout.ID, "TRF-1")
	assert.ErrorIs(t, err, affiliate.ErrInvalidTransition)

	approved, err := env.payouts.Approve(ctx, payout.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, affiliate.PayoutStatusApproved, approved.Status)

	completed, err := env.payouts.Complete(ctx, payout.ID, "TRF-1")
	require.NoError(t, err)
	assert.Equal(t, affiliate.PayoutStatusCompleted, completed.Status)
	assert.Equal(t, "TRF-1", completed.ExternalReference)

	got, err := env.payouts.GetByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, string(affiliate.PayoutStatusCompleted), got.Status)

	assert.ElementsMatch(t, []string{
		affiliate.EventTypeRevenueAdmitted,
		affiliate.EventTypeCommissionApproved,
		affiliate.EventTypePayoutRequested,
		affiliate.EventTypePayoutApproved,
		affiliate.EventTypePayoutCompleted,
	}, env.outboxTypes(t))
}

func TestPayoutService_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	userID := uuid.New()
	env.earn(t, userID, 100000)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.payouts.RequestPayout(ctx, appaff.PayoutRequest{
				UserID: userID, Amount: decimal.NewFromInt(30000),
				Method: affiliate.PayoutMethodEWallet, Account: bankAccount(),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	wallet, err := env.ledger.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(10000)))
	assert.False(t, wallet.Balance.IsNegative())
}

func TestCommissionApprovalService_Approve(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	affiliateID := uuid.New()
	admin := uuid.New()

	revenue, err := env.admission.Admit(ctx, "ORD-1001", affiliateID, decimal.NewFromInt(7000))
	require.NoError(t, err)

	adjusted := decimal.NewFromInt(5000)
	result, err := env.commission.Approve(ctx, revenue.ID, admin, &adjusted)
	require.NoError(t, err)
	assert.True(t, result.FinalAmount.Equal(adjusted))
	assert.True(t, result.Adjusted)
	require.NotNil(t, result.EntryID)

	_, err = env.commission.Approve(ctx, revenue.ID, admin, nil)
	assert.ErrorIs(t, err, affiliate.ErrAlreadyDecided)
	_, err = env.commission.Reject(ctx, revenue.ID, admin, "late")
	assert.ErrorIs(t, err, affiliate.ErrAlreadyDecided)

	wallet, err := env.ledger.GetWallet(ctx, affiliateID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(adjusted))
	assert.True(t, wallet.TotalEarnings.Equal(adjusted))

	stored, err := env.admission.GetByID(ctx, revenue.ID)
	require.NoError(t, err)
	assert.Equal(t, string(affiliate.RevenueStatusApproved), stored.Status)

	env.assertReconciled(t, wallet.ID)
}

func TestCommissionApprovalService_ZeroAmountApproval(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	affiliateID := uuid.New()

	revenue, err := env.admission.Admit(ctx, "ORD-ZERO", affiliateID, decimal.NewFromInt(7000))
	require.NoError(t, err)

	zero := decimal.Zero
	result, err := env.commission.Approve(ctx, revenue.ID, uuid.New(), &zero)
	require.NoError(t, err)
	assert.Nil(t, result.EntryID)
	assert.True(t, result.FinalAmount.IsZero())

	var entryCount int64
	require.NoError(t, env.db.Model(&models.LedgerEntryModel{}).Count(&entryCount).Error)
	assert.Zero(t, entryCount)
}

func TestCommissionApprovalService_Reject(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	affiliateID := uuid.New()

	revenue, err := env.admission.Admit(ctx, "ORD-REJ", affiliateID, decimal.NewFromInt(7000))
	require.NoError(t, err)

	_, err = env.commission.Reject(ctx, revenue.ID, uuid.New(), "  ")
	assert.ErrorIs(t, err, affiliate.ErrRejectionNote)

	result, err := env.commission.Reject(ctx, revenue.ID, uuid.New(), "refunded order")
	require.NoError(t, err)
	assert.True(t, result.RejectedAmount.Equal(decimal.NewFromInt(7000)))

	var walletCount int64
	require.NoError(t, env.db.Model(&models.WalletModel{}).Count(&walletCount).Error)
	assert.Zero(t, walletCount)

	assert.ElementsMatch(t, []string{
		affiliate.EventTypeRevenueAdmitted,
		affiliate.EventTypeCommissionRejected,
	}, env.outboxTypes(t))
}

func TestCommissionApprovalService_FailedCreditRollsBack(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	affiliateID := uuid.New()

	revenue, err := env.admission.Admit(ctx, "ORD-2001", affiliateID, decimal.NewFromInt(7000))
	require.NoError(t, err)

	// an entry already holding the revenue's reference makes the approval credit fail
	wallet, err := env.ledger.EnsureWallet(ctx, affiliateID)
	require.NoError(t, err)
	_, err = env.ledger.Credit(ctx, wallet.ID, decimal.NewFromInt(100), revenue.ID, affiliate.EntryKindCreditCommission)
	require.NoError(t, err)
	eventsBefore := env.outboxTypes(t)

	_, err = env.commission.Approve(ctx, revenue.ID, uuid.New(), nil)
	require.ErrorIs(t, err, affiliate.ErrDuplicateCredit)

	t.Run("record stays pending", func(t *testing.T) {
		stored, err := env.admission.GetByID(ctx, revenue.ID)
		require.NoError(t, err)
		assert.Equal(t, string(affiliate.RevenueStatusPending), stored.Status)
		assert.Nil(t, stored.DecidedAt)
	})

	t.Run("no entry or event is written", func(t *testing.T) {
		var entryCount int64
		require.NoError(t, env.db.Model(&models.LedgerEntryModel{}).
			Where("reference_id = ?", revenue.ID).Count(&entryCount).Error)
		assert.Equal(t, int64(1), entryCount)
		assert.Equal(t, eventsBefore, env.outboxTypes(t))

		got, err := env.ledger.GetWalletByID(ctx, wallet.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
		env.assertReconciled(t, wallet.ID)
	})

	t.Run("record can still be rejected", func(t *testing.T) {
		_, err := env.commission.Reject(ctx, revenue.ID, uuid.New(), "duplicate order")
		assert.NoError(t, err)
	})
}

func TestCommissionApprovalService_ConcurrentApproveCreditsOnce(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	affiliateID := uuid.New()

	revenue, err := env.admission.Admit(ctx, "ORD-3001", affiliateID, decimal.NewFromInt(7000))
	require.NoError(t, err)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		decided   int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.commission.Approve(ctx, revenue.ID, uuid.New(), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, affiliate.ErrAlreadyDecided):
				decided++
			default:
				t.Errorf("unexpected approve error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, decided)

	var entryCount int64
	require.NoError(t, env.db.Model(&models.LedgerEntryModel{}).
		Where("reference_id = ?", revenue.ID).Count(&entryCount).Error)
	assert.Equal(t, int64(1), entryCount)

	wallet, err := env.ledger.GetWallet(ctx, affiliateID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(7000)))
}

func TestCommissionApprovalService_UnknownRevenue(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)

	_, err := env.commission.Approve(context.Background(), uuid.New(), uuid.New(), nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRevenueAdmissionService_Admit(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	affiliateID := uuid.New()

	revenue, err := env.admission.Admit(ctx, "ORD-1", affiliateID, decimal.NewFromInt(7000))
	require.NoError(t, err)
	assert.Equal(t, affiliate.RevenueStatusPending, revenue.Status)

	_, err = env.admission.Admit(ctx, "ORD-1", uuid.New(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, affiliate.ErrDuplicateRevenue)

	_, err = env.admission.Admit(ctx, "ORD-2", affiliateID, decimal.NewFromInt(-1))
	assert.Error(t, err)

	var walletCount int64
	require.NoError(t, env.db.Model(&models.WalletModel{}).Count(&walletCount).Error)
	assert.Zero(t, walletCount, "admission never creates a wallet")

	status := affiliate.RevenueStatusPending
	page, err := env.admission.List(ctx, affiliate.RevenueFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestRevenueAdmissionService_AdmitSale(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)

	revenue, err := env.admission.AdmitSale(context.Background(), "ORD-PCT", uuid.New(),
		decimal.NewFromInt(150000),
		affiliate.CommissionRule{Type: affiliate.CommissionTypePercentage, Rate: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.True(t, revenue.ComputedAmount.Equal(decimal.NewFromInt(15000)))
}

func TestConversionHandler_RedeliveryIsAcknowledged(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	handler := appaff.NewConversionHandler(env.admission, zap.NewNop())
	ctx := context.Background()

	conversion := affiliate.NewConversionRecordedEvent("ORD-77", uuid.New(), decimal.NewFromInt(200000),
		affiliate.CommissionRule{Type: affiliate.CommissionTypeFlat, Rate: decimal.NewFromInt(25000)})

	require.NoError(t, handler.Handle(ctx, conversion))
	require.NoError(t, handler.Handle(ctx, conversion))
	assert.Equal(t, "conversion:ORD-77", handler.IdempotencyKey(conversion))

	var count int64
	require.NoError(t, env.db.Model(&models.PendingRevenueModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConversionHandler_InvalidConversionIsPermanent(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	handler := appaff.NewConversionHandler(env.admission, zap.NewNop())
	ctx := context.Background()
	rule := affiliate.CommissionRule{Type: affiliate.CommissionTypePercentage, Rate: decimal.NewFromInt(10)}

	bad := affiliate.NewConversionRecordedEvent("ORD-NEG", uuid.New(), decimal.NewFromInt(-500), rule)
	err := handler.Handle(ctx, bad)
	require.Error(t, err)
	assert.True(t, event.IsPermanent(err), "negative sale must not be retried: %v", err)

	good := affiliate.NewConversionRecordedEvent("ORD-OK", uuid.New(), decimal.NewFromInt(1000), rule)
	require.NoError(t, handler.Handle(ctx, good))

	var count int64
	require.NoError(t, env.db.Model(&models.PendingRevenueModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLedgerService_Adjust(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	userID := uuid.New()
	admin := uuid.New()
	env.earn(t, userID, 10000)

	wallet, err := env.ledger.EnsureWallet(ctx, userID)
	require.NoError(t, err)

	_, err = env.ledger.Adjust(ctx, wallet.ID, decimal.Zero, uuid.Nil, admin, "noop")
	assert.ErrorIs(t, err, affiliate.ErrInvalidAmount)

	entry, err := env.ledger.Adjust(ctx, wallet.ID, decimal.NewFromInt(-2500), uuid.Nil, admin, "chargeback")
	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-2500)))
	assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(7500)))

	_, err = env.ledger.Adjust(ctx, wallet.ID, decimal.NewFromInt(-8000), uuid.Nil, admin, "too much")
	assert.ErrorIs(t, err, affiliate.ErrInsufficientFunds)

	ref := uuid.New()
	_, err = env.ledger.Credit(ctx, wallet.ID, decimal.NewFromInt(100), ref, affiliate.EntryKindAdjustment)
	require.NoError(t, err)
	_, err = env.ledger.Credit(ctx, wallet.ID, decimal.NewFromInt(100), ref, affiliate.EntryKindAdjustment)
	assert.ErrorIs(t, err, affiliate.ErrDuplicateCredit)

	_, err = env.ledger.Debit(ctx, wallet.ID, decimal.NewFromInt(100), uuid.New(), affiliate.EntryKindCreditCommission)
	assert.ErrorIs(t, err, affiliate.ErrInvalidEntryKind)

	env.assertReconciled(t, wallet.ID)
}

func TestLedgerService_EnsureWalletIsIdempotent(t *testing.T) {
	env := newTestEnv(t, decimal.Zero)
	ctx := context.Background()
	userID := uuid.New()

	first, err := env.ledger.EnsureWallet(ctx, userID)
	require.NoError(t, err)
	second, err := env.ledger.EnsureWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = env.ledger.GetWalletByID(ctx, uuid.New())
	assert.ErrorIs(t, err, affiliate.ErrWalletNotFound)
}
