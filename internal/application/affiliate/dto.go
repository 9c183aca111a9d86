package affiliate

import (
	"time"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalPayouts  decimal.Decimal `json:"total_payouts"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ToWalletResponse converts a domain Wallet to WalletResponse
func ToWalletResponse(w *affiliate.Wallet) WalletResponse {
	return WalletResponse{
		ID:            w.ID,
		UserID:        w.UserID,
		Balance:       w.Balance,
		TotalEarnings: w.TotalEarnings,
		TotalPayouts:  w.TotalPayouts,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceID   uuid.UUID       `json:"reference_id"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	CreatedBy     *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToLedgerEntryResponse converts a domain LedgerEntry to LedgerEntryResponse
func ToLedgerEntryResponse(e *affiliate.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		WalletID:      e.WalletID,
		Kind:          string(e.Kind),
		Amount:        e.Amount,
		ReferenceID:   e.ReferenceID,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Description:   e.Description,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
	}
}

// ReconciliationResult compares a wallet's materialized balance with its ledger
type ReconciliationResult struct {
	WalletID             uuid.UUID       `json:"wallet_id"`
	Balance              decimal.Decimal `json:"balance"`
	EntrySum             decimal.Decimal `json:"entry_sum"`
	EarningsMinusPayouts decimal.Decimal `json:"earnings_minus_payouts"`
	Consistent           bool            `json:"consistent"`
}

// PendingRevenueResponse represents a pending revenue record in API responses
type PendingRevenueResponse struct {
	ID                  uuid.UUID        `json:"id"`
	AffiliateID         uuid.UUID        `json:"affiliate_id"`
	SourceTransactionID string           `json:"source_transaction_id"`
	ComputedAmount      decimal.Decimal  `json:"computed_amount"`
	AdjustedAmount      *decimal.Decimal `json:"adjusted_amount,omitempty"`
	Status              string           `json:"status"`
	DecidedBy           *uuid.UUID       `json:"decided_by,omitempty"`
	DecidedAt           *time.Time       `json:"decided_at,omitempty"`
	RejectionNote       string           `json:"rejection_note,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// ToPendingRevenueResponse converts a domain PendingRevenue to its response
func ToPendingRevenueResponse(p *affiliate.PendingRevenue) PendingRevenueResponse {
	return PendingRevenueResponse{
		ID:                  p.ID,
		AffiliateID:         p.AffiliateID,
		SourceTransactionID: p.SourceTransactionID,
		ComputedAmount:      p.ComputedAmount,
		AdjustedAmount:      p.AdjustedAmount,
		Status:              string(p.Status),
		DecidedBy:           p.DecidedBy,
		DecidedAt:           p.DecidedAt,
		RejectionNote:       p.RejectionNote,
		CreatedAt:           p.CreatedAt,
	}
}

// ApprovalResult is returned by CommissionApprovalService.Approve
type ApprovalResult struct {
	PendingRevenueID uuid.UUID       `json:"pending_revenue_id"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	Adjusted         bool            `json:"adjusted"`
	// EntryID is nil when the final amount was zero and nothing was credited
	EntryID *uuid.UUID `json:"entry_id,omitempty"`
}

// RejectionResult is returned by CommissionApprovalService.Reject
type RejectionResult struct {
	PendingRevenueID uuid.UUID       `json:"pending_revenue_id"`
	RejectedAmount   decimal.Decimal `json:"rejected_amount"`
}

// PayoutResponse represents a payout in API responses
type PayoutResponse struct {
	ID                uuid.UUID       `json:"id"`
	WalletID          uuid.UUID       `json:"wallet_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	Method            string          `json:"method"`
	BankName          string          `json:"bank_name,omitempty"`
	AccountNumber     string          `json:"account_number"`
	AccountName       string          `json:"account_name"`
	DecidedBy         *uuid.UUID      `json:"decided_by,omitempty"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	DecisionNote      string          `json:"decision_note,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToPayoutResponse converts a domain Payout to PayoutResponse
func ToPayoutResponse(p *affiliate.Payout) PayoutResponse {
	return PayoutResponse{
		ID:                p.ID,
		WalletID:          p.WalletID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		Status:            string(p.Status),
		Method:            string(p.Method),
		BankName:          p.Account.BankName,
		AccountNumber:     p.Account.AccountNumber,
		AccountName:       p.Account.AccountName,
		DecidedBy:         p.DecidedBy,
		DecidedAt:         p.DecidedAt,
		DecisionNote:      p.DecisionNote,
		CompletedAt:       p.CompletedAt,
		ExternalReference: p.ExternalReference,
		CreatedAt:         p.CreatedAt,
	}
}

// PayoutRequest is the input of PayoutService.RequestPayout
type PayoutRequest struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Method  affiliate.PayoutMethod
	Account affiliate.AccountDetails
}

// toPage converts a page of domain objects into a page of responses
func toPage[S any, T any](items []S, total int64, page, pageSize int, conv func(S) T) shared.Paginated[T] {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = conv(it)
	}
	return shared.NewPaginated(out, total, page, pageSize)
}

// normalizePage clamps pagination input the same way for every listing
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
