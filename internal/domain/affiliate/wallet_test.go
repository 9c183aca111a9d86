package affiliate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := NewWallet(uuid.New())
	require.NoError(t, err)
	return w
}

func posting(kind EntryKind, amount int64) Posting {
	return Posting{Kind: kind, Amount: decimal.NewFromInt(amount), ReferenceID: uuid.New()}
}

func TestNewWallet(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		w := newTestWallet(t)
		assert.True(t, w.Balance.IsZero())
		assert.True(t, w.TotalEarnings.IsZero())
		assert.True(t, w.TotalPayouts.IsZero())
		assert.True(t, w.IsConsistent())
	})

	t.Run("requires user", func(t *testing.T) {
		_, err := NewWallet(uuid.Nil)
		assert.Error(t, err)
	})
}

func TestWallet_Credit(t *testing.T) {
	t.Run("commission credit raises balance and earnings", func(t *testing.T) {
		w := newTestWallet(t)
		p := posting(EntryKindCreditCommission, 100000)

		entry, err := w.Credit(p)
		require.NoError(t, err)

		assert.True(t, w.Balance.Equal(decimal.NewFromInt(100000)))
		assert.True(t, w.TotalEarnings.Equal(decimal.NewFromInt(100000)))
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(100000)))
		assert.True(t, entry.BalanceBefore.IsZero())
		assert.True(t, entry.BalanceAfter.Equal(w.Balance))
		assert.Equal(t, p.ReferenceID, entry.ReferenceID)
		assert.Equal(t, w.ID, entry.WalletID)
		assert.True(t, entry.IsCredit())
	})

	t.Run("rejects debit-only kind", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindDebitPayout, 10))
		assert.ErrorIs(t, err, ErrInvalidEntryKind)
		assert.True(t, w.Balance.IsZero())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindCreditCommission, 0))
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = w.Credit(posting(EntryKindCreditCommission, -5))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("requires a reference", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(Posting{Kind: EntryKindCreditCommission, Amount: decimal.NewFromInt(1)})
		assert.Error(t, err)
	})

	t.Run("reversal reduces total payouts", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindCreditCommission, 1000))
		require.NoError(t, err)
		_, err = w.Debit(posting(EntryKindDebitPayout, 400))
		require.NoError(t, err)

		_, err = w.Credit(posting(EntryKindPayoutReversal, 400))
		require.NoError(t, err)

		assert.True(t, w.Balance.Equal(decimal.NewFromInt(1000)))
		assert.True(t, w.TotalPayouts.IsZero())
		assert.True(t, w.IsConsistent())
	})

	t.Run("reversal cannot exceed payouts", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindPayoutReversal, 1))
		assert.Error(t, err)
	})
}

func TestWallet_Debit(t *testing.T) {
	t.Run("insufficient funds leaves wallet untouched", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindCreditCommission, 40000))
		require.NoError(t, err)

		entry, err := w.Debit(posting(EntryKindDebitPayout, 50000))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Nil(t, entry)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(40000)))
		assert.True(t, w.TotalPayouts.IsZero())
	})

	t.Run("payout debit records negative entry", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindCreditCommission, 100000))
		require.NoError(t, err)

		entry, err := w.Debit(posting(EntryKindDebitPayout, 60000))
		require.NoError(t, err)

		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-60000)))
		assert.True(t, entry.AbsAmount().Equal(decimal.NewFromInt(60000)))
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(40000)))
		assert.True(t, w.TotalPayouts.Equal(decimal.NewFromInt(60000)))
		assert.True(t, w.IsConsistent())
	})

	t.Run("exact balance can be debited", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindCreditCommission, 10))
		require.NoError(t, err)
		_, err = w.Debit(posting(EntryKindDebitPayout, 10))
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())
	})

	t.Run("adjustment debit reduces earnings", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Credit(posting(EntryKindAdjustment, 300))
		require.NoError(t, err)
		_, err = w.Debit(posting(EntryKindAdjustment, 100))
		require.NoError(t, err)

		assert.True(t, w.TotalEarnings.Equal(decimal.NewFromInt(200)))
		assert.True(t, w.IsConsistent())
	})

	t.Run("rejects credit-only kind", func(t *testing.T) {
		w := newTestWallet(t)
		_, err := w.Debit(posting(EntryKindCreditCommission, 1))
		assert.ErrorIs(t, err, ErrInvalidEntryKind)
	})
}

func TestWallet_EntriesReconcileWithBalance(t *testing.T) {
	w := newTestWallet(t)
	var entries []*LedgerEntry

	for _, step := range []struct {
		credit bool
		kind   EntryKind
		amount int64
	}{
		{true, EntryKindCreditCommission, 100000},
		{false, EntryKindDebitPayout, 60000},
		{true, EntryKindCreditCommission, 2500},
		{false, EntryKindAdjustment, 500},
		{true, EntryKindPayoutReversal, 60000},
	} {
		var (
			e   *LedgerEntry
			err error
		)
		if step.credit {
			e, err = w.Credit(posting(step.kind, step.amount))
		} else {
			e, err = w.Debit(posting(step.kind, step.amount))
		}
		require.NoError(t, err)
		entries = append(entries, e)

		assert.True(t, SumEntries(entries).Equal(w.Balance))
		assert.True(t, w.IsConsistent())
	}
}

func TestMoneyScale(t *testing.T) {
	amounts := []struct {
		name  string
		value string
		valid bool
	}{
		{"whole", "150000", true},
		{"cents", "150000.25", true},
		{"trailing zeros", "10.500", true},
		{"sub-cent", "10.005", false},
		{"tiny", "0.001", false},
	}

	type check func(t *testing.T, d decimal.Decimal) error
	checks := map[string]check{
		"posting": func(t *testing.T, d decimal.Decimal) error {
			_, err := newTestWallet(t).Credit(Posting{Kind: EntryKindCreditCommission, Amount: d, ReferenceID: uuid.New()})
			return err
		},
		"pending revenue": func(t *testing.T, d decimal.Decimal) error {
			_, err := NewPendingRevenue("TX-SCALE", uuid.New(), d)
			return err
		},
		"approve adjustment": func(t *testing.T, d decimal.Decimal) error {
			return newTestRevenue(t, 1000).Approve(uuid.New(), &d)
		},
		"payout": func(t *testing.T, d decimal.Decimal) error {
			_, err := NewPayout(newTestWallet(t), d, PayoutMethodBankTransfer, testAccount)
			return err
		},
	}

	for name, fn := range checks {
		for _, tc := range amounts {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				err := fn(t, decimal.RequireFromString(tc.value))
				if tc.valid {
					assert.NoError(t, err)
					return
				}
				assert.ErrorIs(t, err, ErrInvalidAmount)
				assert.ErrorIs(t, err, ErrAmountScale)
			})
		}
	}

	t.Run("rejected adjustment leaves record pending", func(t *testing.T) {
		pr := newTestRevenue(t, 1000)
		adjusted := decimal.RequireFromString("999.999")
		require.Error(t, pr.Approve(uuid.New(), &adjusted))
		assert.Equal(t, RevenueStatusPending, pr.Status)
		assert.Nil(t, pr.AdjustedAmount)
	})
}
