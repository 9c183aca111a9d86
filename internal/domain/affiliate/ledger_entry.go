package affiliate

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is an immutable record of one wallet balance change.
// Amount is signed: credits are positive and debits negative, so the sum of a
// wallet's entries equals its balance.
type LedgerEntry struct {
	ID            uuid.UUID
	WalletID      uuid.UUID
	Kind          EntryKind
	Amount        decimal.Decimal
	ReferenceID   uuid.UUID
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	CreatedBy     *uuid.UUID
	CreatedAt     time.Time
}

// IsCredit returns true if the entry increased the balance
func (e *LedgerEntry) IsCredit() bool {
	return e.Amount.IsPositive()
}

// AbsAmount returns the unsigned amount
func (e *LedgerEntry) AbsAmount() decimal.Decimal {
	return e.Amount.Abs()
}

// SumEntries returns the signed total of the given entries
func SumEntries(entries []*LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
