package affiliate

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence for wallets. It has no method that
// changes a balance; balances are written only by LedgerEntryRepository.Append.
type WalletRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// FindByIDForUpdate loads the wallet and holds a row lock until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Wallet, error)
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// Create inserts a new empty wallet. It returns shared.ErrAlreadyExists
	// when the user already owns one, without aborting the surrounding
	// transaction.
	Create(ctx context.Context, wallet *Wallet) error
}

// LedgerEntryFilter contains filter options for listing ledger entries
type LedgerEntryFilter struct {
	Kind     *EntryKind
	Page     int
	PageSize int
}

// LedgerEntryRepository defines persistence for the append-only ledger
type LedgerEntryRepository interface {
	// Append inserts entry and writes the wallet's balance and totals in the
	// same statement batch. It must run inside the transaction holding the
	// wallet row lock. A second entry for the same (reference, kind) fails
	// with ErrDuplicateCredit.
	Append(ctx context.Context, wallet *Wallet, entry *LedgerEntry) error
	ExistsByReference(ctx context.Context, referenceID uuid.UUID, kind EntryKind) (bool, error)
	FindByReference(ctx context.Context, referenceID uuid.UUID) ([]*LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, filter LedgerEntryFilter) ([]*LedgerEntry, int64, error)
	SumByWallet(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

// RevenueFilter contains filter options for listing pending revenue
type RevenueFilter struct {
	AffiliateID *uuid.UUID
	Status      *RevenueStatus
	Page        int
	PageSize    int
}

// PendingRevenueRepository defines persistence for pending revenue
type PendingRevenueRepository interface {
	// Create fails with ErrDuplicateRevenue when the source transaction was
	// already admitted.
	Create(ctx context.Context, revenue *PendingRevenue) error
	FindByID(ctx context.Context, id uuid.UUID) (*PendingRevenue, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PendingRevenue, error)
	FindBySourceTransactionID(ctx context.Context, sourceTransactionID string) (*PendingRevenue, error)
	// SaveDecision persists an APPROVED or REJECTED record only if the stored
	// row is still PENDING, otherwise it returns ErrAlreadyDecided.
	SaveDecision(ctx context.Context, revenue *PendingRevenue) error
	List(ctx context.Context, filter RevenueFilter) ([]*PendingRevenue, int64, error)
}

// PayoutFilter contains filter options for listing payouts
type PayoutFilter struct {
	UserID   *uuid.UUID
	Status   *PayoutStatus
	Page     int
	PageSize int
}

// PayoutRepository defines persistence for payouts
type PayoutRepository interface {
	Create(ctx context.Context, payout *Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payout, error)
	// SaveTransition persists the payout only if the stored status still
	// equals from; otherwise it returns ErrAlreadyDecided.
	SaveTransition(ctx context.Context, payout *Payout, from PayoutStatus) error
	List(ctx context.Context, filter PayoutFilter) ([]*Payout, int64, error)
}
