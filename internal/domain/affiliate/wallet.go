package affiliate

import (
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the per-user running balance plus lifetime totals.
//
// Balance is a materialized sum of the wallet's ledger entries. The only way
// to change it is Credit or Debit, each of which returns the LedgerEntry that
// must be persisted in the same transaction as the new balance.
type Wallet struct {
	shared.BaseEntity
	UserID        uuid.UUID
	Balance       decimal.Decimal
	TotalEarnings decimal.Decimal
	TotalPayouts  decimal.Decimal
}

// NewWallet creates an empty wallet for a user
func NewWallet(userID uuid.UUID) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	return &Wallet{
		BaseEntity:    shared.NewBaseEntity(),
		UserID:        userID,
		Balance:       decimal.Zero,
		TotalEarnings: decimal.Zero,
		TotalPayouts:  decimal.Zero,
	}, nil
}

// Posting describes a balance change before it is applied
type Posting struct {
	Kind        EntryKind
	Amount      decimal.Decimal
	ReferenceID uuid.UUID
	Description string
	CreatedBy   *uuid.UUID
}

// moneyScale is the number of decimal places every ledger column stores
const moneyScale = 2

// fitsMoneyScale reports whether d can be stored without rounding
func fitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyScale))
}

func (p Posting) validate(d Direction) error {
	if !p.Kind.Allows(d) {
		return ErrInvalidEntryKind
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !fitsMoneyScale(p.Amount) {
		return ErrAmountScale
	}
	if p.ReferenceID == uuid.Nil {
		return shared.NewDomainError("INVALID_REFERENCE", "Reference ID cannot be empty")
	}
	return nil
}

// Credit increases the balance and returns the matching ledger entry
func (w *Wallet) Credit(p Posting) (*LedgerEntry, error) {
	if err := p.validate(DirectionCredit); err != nil {
		return nil, err
	}

	switch p.Kind {
	case EntryKindPayoutReversal:
		if w.TotalPayouts.LessThan(p.Amount) {
			return nil, shared.NewDomainError("INVALID_REVERSAL", "Reversal exceeds total payouts")
		}
		w.TotalPayouts = w.TotalPayouts.Sub(p.Amount)
	default:
		w.TotalEarnings = w.TotalEarnings.Add(p.Amount)
	}

	return w.post(p, p.Amount), nil
}

// Debit decreases the balance and returns the matching ledger entry.
// It fails with ErrInsufficientFunds and leaves the wallet untouched when the
// balance does not cover the amount.
func (w *Wallet) Debit(p Posting) (*LedgerEntry, error) {
	if err := p.validate(DirectionDebit); err != nil {
		return nil, err
	}
	if w.Balance.LessThan(p.Amount) {
		return nil, ErrInsufficientFunds
	}

	switch p.Kind {
	case EntryKindAdjustment:
		w.TotalEarnings = w.TotalEarnings.Sub(p.Amount)
	default:
		w.TotalPayouts = w.TotalPayouts.Add(p.Amount)
	}

	return w.post(p, p.Amount.Neg()), nil
}

func (w *Wallet) post(p Posting, signed decimal.Decimal) *LedgerEntry {
	before := w.Balance
	w.Balance = w.Balance.Add(signed)
	w.UpdatedAt = time.Now()

	return &LedgerEntry{
		ID:            uuid.New(),
		WalletID:      w.ID,
		Kind:          p.Kind,
		Amount:        signed,
		ReferenceID:   p.ReferenceID,
		BalanceBefore: before,
		BalanceAfter:  w.Balance,
		Description:   p.Description,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     w.UpdatedAt,
	}
}

// IsConsistent checks balance == totalEarnings - totalPayouts
func (w *Wallet) IsConsistent() bool {
	return w.Balance.Equal(w.TotalEarnings.Sub(w.TotalPayouts))
}
