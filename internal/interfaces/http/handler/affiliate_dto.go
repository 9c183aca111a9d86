package handler

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdmitConversionRequest reports a sale attributed to an affiliate. Either
// Amount (a commission already computed upstream) or SaleAmount with a
// commission rule must be given.
type AdmitConversionRequest struct {
	SourceTransactionID string           `json:"source_transaction_id" binding:"required,max=100"`
	AffiliateID         uuid.UUID        `json:"affiliate_id" binding:"required"`
	Amount              *decimal.Decimal `json:"amount"`
	SaleAmount          *decimal.Decimal `json:"sale_amount"`
	CommissionType      string           `json:"commission_type" binding:"omitempty,oneof=PERCENTAGE FLAT"`
	CommissionRate      *decimal.Decimal `json:"commission_rate"`
}

// ApproveRevenueRequest optionally overrides the computed commission
type ApproveRevenueRequest struct {
	AdjustedAmount *decimal.Decimal `json:"adjusted_amount"`
}

// RejectRequest carries the reviewer's note
type RejectRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// ListRevenuesQuery filters the review queue
type ListRevenuesQuery struct {
	Status      string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	AffiliateID string `form:"affiliate_id" binding:"omitempty,uuid"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListEntriesQuery filters a wallet's ledger history
type ListEntriesQuery struct {
	Kind     string `form:"kind"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AdjustWalletRequest posts a signed manual correction. A repeated
// ReferenceID is rejected as a duplicate credit or debit.
type AdjustWalletRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID *uuid.UUID      `json:"reference_id"`
	Description string          `json:"description" binding:"required,max=500"`
}

// RequestPayoutRequest asks to withdraw from the caller's wallet
type RequestPayoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" binding:"required,oneof=BANK_TRANSFER EWALLET"`
	BankName      string          `json:"bank_name" binding:"max=100"`
	AccountNumber string          `json:"account_number" binding:"required,max=50"`
	AccountName   string          `json:"account_name" binding:"required,max=100"`
}

// CompletePayoutRequest records the transfer reference
type CompletePayoutRequest struct {
	ExternalReference string `json:"external_reference" binding:"max=100"`
}

// ListPayoutsQuery filters payouts. UserID is honoured for admins only.
type ListPayoutsQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED COMPLETED"`
	UserID   string `form:"user_id" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}
