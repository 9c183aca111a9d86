package affiliate

import (
	"strings"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypePayout is the aggregate type for payout events
const AggregateTypePayout = "Payout"

// PayoutStatus represents the settlement state of a payout
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "PENDING"
	PayoutStatusApproved  PayoutStatus = "APPROVED"
	PayoutStatusRejected  PayoutStatus = "REJECTED"
	PayoutStatusCompleted PayoutStatus = "COMPLETED"
)

// IsValid returns true if the status is known
func (s PayoutStatus) IsValid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusRejected, PayoutStatusCompleted:
		return true
	}
	return false
}

// PayoutMethod is the rail a payout is sent through
type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "BANK_TRANSFER"
	PayoutMethodEWallet      PayoutMethod = "EWALLET"
)

// IsValid returns true if the method is supported
func (m PayoutMethod) IsValid() bool {
	return m == PayoutMethodBankTransfer || m == PayoutMethodEWallet
}

// AccountDetails identifies the destination account
type AccountDetails struct {
	BankName      string
	AccountNumber string
	AccountName   string
}

// Validate checks the destination is usable
func (a AccountDetails) Validate() error {
	if strings.TrimSpace(a.AccountNumber) == "" {
		return shared.NewDomainError("INVALID_ACCOUNT", "Account number is required")
	}
	if strings.TrimSpace(a.AccountName) == "" {
		return shared.NewDomainError("INVALID_ACCOUNT", "Account name is required")
	}
	return nil
}

// Payout is a withdrawal request. Its funds are debited from the wallet when
// the request is created, so the aggregate only tracks the settlement state.
type Payout struct {
	shared.BaseAggregateRoot
	WalletID          uuid.UUID
	UserID            uuid.UUID
	Amount            decimal.Decimal
	Status            PayoutStatus
	Method            PayoutMethod
	Account           AccountDetails
	DecidedBy         *uuid.UUID
	DecidedAt         *time.Time
	DecisionNote      string
	CompletedAt       *time.Time
	ExternalReference string
}

// NewPayout builds a PENDING payout. The ID is generated up front because it
// is the reference of the debit that reserves the funds.
func NewPayout(wallet *Wallet, amount decimal.Decimal, method PayoutMethod, account AccountDetails) (*Payout, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !fitsMoneyScale(amount) {
		return nil, ErrAmountScale
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYOUT_METHOD", "Unsupported payout method")
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	p := &Payout{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		WalletID:          wallet.ID,
		UserID:            wallet.UserID,
		Amount:            amount,
		Status:            PayoutStatusPending,
		Method:            method,
		Account:           account,
	}
	p.AddDomainEvent(NewPayoutRequestedEvent(p))
	return p, nil
}

// Approve authorizes the payout for settlement
func (p *Payout) Approve(decidedBy uuid.UUID) error {
	if p.Status != PayoutStatusPending {
		return ErrAlreadyDecided
	}
	p.decide(PayoutStatusApproved, decidedBy)
	p.AddDomainEvent(NewPayoutApprovedEvent(p))
	return nil
}

// Reject declines the payout. The caller is responsible for reversing the
// debit in the same transaction.
func (p *Payout) Reject(decidedBy uuid.UUID, note string) error {
	if p.Status != PayoutStatusPending {
		return ErrAlreadyDecided
	}
	p.DecisionNote = strings.TrimSpace(note)
	p.decide(PayoutStatusRejected, decidedBy)
	p.AddDomainEvent(NewPayoutRejectedEvent(p))
	return nil
}

// Complete records settlement by the payment rail
func (p *Payout) Complete(externalReference string) error {
	if p.Status != PayoutStatusApproved {
		return ErrInvalidTransition
	}
	now := time.Now()
	p.Status = PayoutStatusCompleted
	p.CompletedAt = &now
	p.ExternalReference = strings.TrimSpace(externalReference)
	p.UpdatedAt = now
	p.IncrementVersion()
	p.AddDomainEvent(NewPayoutCompletedEvent(p))
	return nil
}

func (p *Payout) decide(status PayoutStatus, decidedBy uuid.UUID) {
	now := time.Now()
	p.Status = status
	p.DecidedBy = &decidedBy
	p.DecidedAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()
}
