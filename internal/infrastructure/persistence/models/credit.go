package models

import (
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/google/uuid"
)

// CreditAccountModel is the persistence model for automation.CreditAccount
type CreditAccountModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	AffiliateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Balance     int       `gorm:"not null;default:0"`
	TotalTopUp  int       `gorm:"not null;default:0"`
	TotalUsed   int       `gorm:"not null;default:0"`
	Version     int       `gorm:"not null;default:1"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CreditAccountModel) TableName() string {
	return "affiliate_credits"
}

// ToDomain converts the model to a domain CreditAccount
func (m *CreditAccountModel) ToDomain() *automation.CreditAccount {
	return &automation.CreditAccount{
		ID:          m.ID,
		AffiliateID: m.AffiliateID,
		Balance:     m.Balance,
		TotalTopUp:  m.TotalTopUp,
		TotalUsed:   m.TotalUsed,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CreditAccountModelFromDomain creates a model from a domain CreditAccount
func CreditAccountModelFromDomain(a *automation.CreditAccount) *CreditAccountModel {
	return &CreditAccountModel{
		ID:          a.ID,
		AffiliateID: a.AffiliateID,
		Balance:     a.Balance,
		TotalTopUp:  a.TotalTopUp,
		TotalUsed:   a.TotalUsed,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// CreditTransactionModel is the persistence model for automation.CreditTransaction.
// (type, reference_id) is unique so a send is charged once.
type CreditTransactionModel struct {
	ID            uuid.UUID                        `gorm:"type:uuid;primaryKey"`
	CreditID      uuid.UUID                        `gorm:"type:uuid;not null;index"`
	AffiliateID   uuid.UUID                        `gorm:"type:uuid;not null;index:idx_credit_tx_affiliate_created,priority:1"`
	Type          automation.CreditTransactionType `gorm:"type:varchar(10);not null;uniqueIndex:idx_credit_tx_type_reference,priority:1"`
	Amount        int                              `gorm:"not null"`
	BalanceBefore int                              `gorm:"not null"`
	BalanceAfter  int                              `gorm:"not null"`
	Description   string                           `gorm:"type:varchar(300)"`
	ReferenceID   string                           `gorm:"type:varchar(100);not null;uniqueIndex:idx_credit_tx_type_reference,priority:2"`
	CreatedAt     time.Time                        `gorm:"not null;index:idx_credit_tx_affiliate_created,priority:2"`
}

// TableName returns the table name for GORM
func (CreditTransactionModel) TableName() string {
	return "affiliate_credit_transactions"
}

// ToDomain converts the model to a domain CreditTransaction
func (m *CreditTransactionModel) ToDomain() *automation.CreditTransaction {
	return &automation.CreditTransaction{
		ID:            m.ID,
		AccountID:     m.CreditID,
		AffiliateID:   m.AffiliateID,
		Type:          m.Type,
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Description:   m.Description,
		ReferenceID:   m.ReferenceID,
		CreatedAt:     m.CreatedAt,
	}
}

// CreditTransactionModelFromDomain creates a model from a domain CreditTransaction
func CreditTransactionModelFromDomain(t *automation.CreditTransaction) *CreditTransactionModel {
	return &CreditTransactionModel{
		ID:            t.ID,
		CreditID:      t.AccountID,
		AffiliateID:   t.AffiliateID,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}
