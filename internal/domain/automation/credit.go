package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultCreditCost is what one automation message costs
const DefaultCreditCost = 1

// CreditTransactionType says which way a credit transaction moved the balance
type CreditTransactionType string

const (
	CreditTopUp  CreditTransactionType = "TOPUP"
	CreditDeduct CreditTransactionType = "DEDUCT"
)

// CreditAccount is the affiliate's prepaid messaging balance. Every change
// goes through TopUp or Deduct, which return the transaction recording it.
type CreditAccount struct {
	ID          uuid.UUID
	AffiliateID uuid.UUID
	Balance     int
	TotalTopUp  int
	TotalUsed   int
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreditTransaction is one movement of a credit account. ReferenceID ties it
// to its cause (the execution log for a deduction, the payment for a top-up)
// and is unique per type.
type CreditTransaction struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	AffiliateID   uuid.UUID
	Type          CreditTransactionType
	Amount        int
	BalanceBefore int
	BalanceAfter  int
	Description   string
	ReferenceID   string
	CreatedAt     time.Time
}

// NewCreditAccount opens an empty account for the affiliate
func NewCreditAccount(affiliateID uuid.UUID) *CreditAccount {
	now := time.Now()
	return &CreditAccount{
		ID:          uuid.New(),
		AffiliateID: affiliateID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Available is the spendable balance; an affiliate without an account has none
func (a *CreditAccount) Available() int {
	if a == nil {
		return 0
	}
	return a.Balance
}

// Covers fails with an INSUFFICIENT_CREDIT error when the balance is below amount
func (a *CreditAccount) Covers(amount int) error {
	if a.Available() < amount {
		return InsufficientCredit(amount, a.Available())
	}
	return nil
}

// TopUp adds purchased credits
func (a *CreditAccount) TopUp(amount int, referenceID, description string) (*CreditTransaction, error) {
	if err := validateCreditPosting(amount, referenceID); err != nil {
		return nil, err
	}
	tx := a.record(CreditTopUp, amount, referenceID, description)
	a.Balance += amount
	a.TotalTopUp += amount
	tx.BalanceAfter = a.Balance
	return tx, nil
}

// Deduct spends credits. The account is untouched when the balance is short.
func (a *CreditAccount) Deduct(amount int, referenceID, description string) (*CreditTransaction, error) {
	if err := validateCreditPosting(amount, referenceID); err != nil {
		return nil, err
	}
	if err := a.Covers(amount); err != nil {
		return nil, err
	}
	tx := a.record(CreditDeduct, amount, referenceID, description)
	a.Balance -= amount
	a.TotalUsed += amount
	tx.BalanceAfter = a.Balance
	return tx, nil
}

func (a *CreditAccount) record(typ CreditTransactionType, amount int, referenceID, description string) *CreditTransaction {
	now := time.Now()
	a.UpdatedAt = now
	return &CreditTransaction{
		ID:            uuid.New(),
		AccountID:     a.ID,
		AffiliateID:   a.AffiliateID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: a.Balance,
		Description:   strings.TrimSpace(description),
		ReferenceID:   referenceID,
		CreatedAt:     now,
	}
}

func validateCreditPosting(amount int, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidCreditAmount
	}
	if strings.TrimSpace(referenceID) == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Credit reference cannot be empty")
	}
	return nil
}

// InsufficientCredit builds the error reported when a send cannot be paid for
func InsufficientCredit(required, available int) error {
	return shared.NewDomainError(ErrInsufficientCredit.Code,
		fmt.Sprintf("Insufficient credit. Required: %d, Available: %d", required, available))
}
