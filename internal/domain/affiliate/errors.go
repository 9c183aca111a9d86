package affiliate

import "github.com/eksporyuk/backend/internal/domain/shared"

// Ledger and commission errors. Codes are stable and mapped to HTTP statuses
// by the interface layer.
var (
	ErrInsufficientFunds  = shared.NewDomainError("INSUFFICIENT_FUNDS", "Insufficient wallet balance")
	ErrDuplicateRevenue   = shared.NewDomainError("DUPLICATE_REVENUE", "Revenue already admitted for this transaction")
	ErrDuplicateCredit    = shared.NewDomainError("DUPLICATE_CREDIT", "Ledger entry already recorded for this reference")
	ErrAlreadyDecided     = shared.NewDomainError("ALREADY_DECIDED", "Record has already been decided")
	ErrInvalidTransition  = shared.NewDomainError("INVALID_TRANSITION", "Status transition not allowed")
	ErrInvalidAmount      = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrAmountScale        = shared.NewDomainError("INVALID_AMOUNT", "Amount cannot have more than 2 decimal places")
	ErrInvalidEntryKind   = shared.NewDomainError("INVALID_ENTRY_KIND", "Ledger entry kind not allowed for this operation")
	ErrRejectionNote      = shared.NewDomainError("REJECTION_NOTE_REQUIRED", "A note is required when rejecting")
	ErrBelowMinimumPayout = shared.NewDomainError("BELOW_MINIMUM_PAYOUT", "Payout amount is below the minimum")
	ErrWalletNotFound     = shared.NewDomainError("NOT_FOUND", "Wallet not found")
	ErrRevenueNotFound    = shared.NewDomainError("NOT_FOUND", "Pending revenue not found")
	ErrPayoutNotFound     = shared.NewDomainError("NOT_FOUND", "Payout not found")
)
