package models

import (
	"time"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletModel is the persistence model for affiliate.Wallet
type WalletModel struct {
	BaseModel
	UserID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TotalEarnings decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TotalPayouts  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (WalletModel) TableName() string {
	return "affiliate_wallets"
}

// ToDomain converts the model to a domain Wallet
func (m *WalletModel) ToDomain() *affiliate.Wallet {
	return &affiliate.Wallet{
		BaseEntity:    m.BaseModel.ToDomain(),
		UserID:        m.UserID,
		Balance:       m.Balance,
		TotalEarnings: m.TotalEarnings,
		TotalPayouts:  m.TotalPayouts,
	}
}

// WalletModelFromDomain creates a model from a domain Wallet
func WalletModelFromDomain(w *affiliate.Wallet) *WalletModel {
	m := &WalletModel{
		UserID:        w.UserID,
		Balance:       w.Balance,
		TotalEarnings: w.TotalEarnings,
		TotalPayouts:  w.TotalPayouts,
	}
	m.FromDomainBaseEntity(w.BaseEntity)
	return m
}

// LedgerEntryModel is the persistence model for affiliate.LedgerEntry.
// (reference_id, kind) is unique so a reference is posted at most once per kind.
type LedgerEntryModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	WalletID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_ledger_wallet_created,priority:1"`
	Kind          affiliate.EntryKind `gorm:"type:varchar(30);not null;uniqueIndex:idx_ledger_reference_kind,priority:2"`
	Amount        decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	ReferenceID   uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_reference_kind,priority:1"`
	BalanceBefore decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	BalanceAfter  decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Description   string              `gorm:"type:varchar(500)"`
	CreatedBy     *uuid.UUID          `gorm:"type:uuid"`
	CreatedAt     time.Time           `gorm:"not null;index:idx_ledger_wallet_created,priority:2"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "affiliate_ledger_entries"
}

// ToDomain converts the model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *affiliate.LedgerEntry {
	return &affiliate.LedgerEntry{
		ID:            m.ID,
		WalletID:      m.WalletID,
		Kind:          m.Kind,
		Amount:        m.Amount,
		ReferenceID:   m.ReferenceID,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Description:   m.Description,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain creates a model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *affiliate.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:            e.ID,
		WalletID:      e.WalletID,
		Kind:          e.Kind,
		Amount:        e.Amount,
		ReferenceID:   e.ReferenceID,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Description:   e.Description,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
	}
}

// PendingRevenueModel is the persistence model for affiliate.PendingRevenue
type PendingRevenueModel struct {
	AggregateModel
	AffiliateID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	SourceTransactionID string                  `gorm:"type:varchar(100);not null;uniqueIndex"`
	ComputedAmount      decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Status              affiliate.RevenueStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AdjustedAmount      *decimal.Decimal        `gorm:"type:decimal(18,2)"`
	DecidedBy           *uuid.UUID              `gorm:"type:uuid"`
	DecidedAt           *time.Time
	RejectionNote       string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PendingRevenueModel) TableName() string {
	return "affiliate_pending_revenues"
}

// ToDomain converts the model to a domain PendingRevenue
func (m *PendingRevenueModel) ToDomain() *affiliate.PendingRevenue {
	return &affiliate.PendingRevenue{
		BaseAggregateRoot:   m.ToDomainAggregateRoot(),
		AffiliateID:         m.AffiliateID,
		SourceTransactionID: m.SourceTransactionID,
		ComputedAmount:      m.ComputedAmount,
		Status:              m.Status,
		AdjustedAmount:      m.AdjustedAmount,
		DecidedBy:           m.DecidedBy,
		DecidedAt:           m.DecidedAt,
		RejectionNote:       m.RejectionNote,
	}
}

// PendingRevenueModelFromDomain creates a model from a domain PendingRevenue
func PendingRevenueModelFromDomain(p *affiliate.PendingRevenue) *PendingRevenueModel {
	m := &PendingRevenueModel{
		AffiliateID:         p.AffiliateID,
		SourceTransactionID: p.SourceTransactionID,
		ComputedAmount:      p.ComputedAmount,
		Status:              p.Status,
		AdjustedAmount:      p.AdjustedAmount,
		DecidedBy:           p.DecidedBy,
		DecidedAt:           p.DecidedAt,
		RejectionNote:       p.RejectionNote,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// PayoutModel is the persistence model for affiliate.Payout
type PayoutModel struct {
	AggregateModel
	WalletID          uuid.UUID              `gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID              `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	Status            affiliate.PayoutStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Method            affiliate.PayoutMethod `gorm:"type:varchar(30);not null"`
	BankName          string                 `gorm:"type:varchar(100)"`
	AccountNumber     string                 `gorm:"type:varchar(100);not null"`
	AccountName       string                 `gorm:"type:varchar(200);not null"`
	DecidedBy         *uuid.UUID             `gorm:"type:uuid"`
	DecidedAt         *time.Time
	DecisionNote      string `gorm:"type:text"`
	CompletedAt       *time.Time
	ExternalReference string `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (PayoutModel) TableName() string {
	return "affiliate_payouts"
}

// ToDomain converts the model to a domain Payout
func (m *PayoutModel) ToDomain() *affiliate.Payout {
	return &affiliate.Payout{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		WalletID:          m.WalletID,
		UserID:            m.UserID,
		Amount:            m.Amount,
		Status:            m.Status,
		Method:            m.Method,
		Account: affiliate.AccountDetails{
			BankName:      m.BankName,
			AccountNumber: m.AccountNumber,
			AccountName:   m.AccountName,
		},
		DecidedBy:         m.DecidedBy,
		DecidedAt:         m.DecidedAt,
		DecisionNote:      m.DecisionNote,
		CompletedAt:       m.CompletedAt,
		ExternalReference: m.ExternalReference,
	}
}

// PayoutModelFromDomain creates a model from a domain Payout
func PayoutModelFromDomain(p *affiliate.Payout) *PayoutModel {
	m := &PayoutModel{
		WalletID:          p.WalletID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		Status:            p.Status,
		Method:            p.Method,
		BankName:          p.Account.BankName,
		AccountNumber:     p.Account.AccountNumber,
		AccountName:       p.Account.AccountName,
		DecidedBy:         p.DecidedBy,
		DecidedAt:         p.DecidedAt,
		DecisionNote:      p.DecisionNote,
		CompletedAt:       p.CompletedAt,
		ExternalReference: p.ExternalReference,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}
