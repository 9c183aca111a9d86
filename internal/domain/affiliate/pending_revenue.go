package affiliate

import (
	"strings"
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypePendingRevenue is the aggregate type for pending revenue events
const AggregateTypePendingRevenue = "PendingRevenue"

// RevenueStatus represents the review state of a pending revenue record
type RevenueStatus string

const (
	RevenueStatusPending  RevenueStatus = "PENDING"
	RevenueStatusApproved RevenueStatus = "APPROVED"
	RevenueStatusRejected RevenueStatus = "REJECTED"
)

// IsValid returns true if the status is known
func (s RevenueStatus) IsValid() bool {
	switch s {
	case RevenueStatusPending, RevenueStatusApproved, RevenueStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true for APPROVED and REJECTED
func (s RevenueStatus) IsTerminal() bool {
	return s == RevenueStatusApproved || s == RevenueStatusRejected
}

// PendingRevenue is a commission awaiting admin review. It never touches a
// wallet until approved.
type PendingRevenue struct {
	shared.BaseAggregateRoot
	AffiliateID         uuid.UUID
	SourceTransactionID string
	ComputedAmount      decimal.Decimal
	Status              RevenueStatus
	AdjustedAmount      *decimal.Decimal
	DecidedBy           *uuid.UUID
	DecidedAt           *time.Time
	RejectionNote       string
}

// NewPendingRevenue admits a conversion for review
func NewPendingRevenue(sourceTransactionID string, affiliateID uuid.UUID, computedAmount decimal.Decimal) (*PendingRevenue, error) {
	sourceTransactionID = strings.TrimSpace(sourceTransactionID)
	if sourceTransactionID == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE_TRANSACTION", "Source transaction ID cannot be empty")
	}
	if affiliateID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_AFFILIATE", "Affiliate ID cannot be empty")
	}
	if computedAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Commission amount cannot be negative")
	}
	if !fitsMoneyScale(computedAmount) {
		return nil, ErrAmountScale
	}

	pr := &PendingRevenue{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		AffiliateID:         affiliateID,
		SourceTransactionID: sourceTransactionID,
		ComputedAmount:      computedAmount,
		Status:              RevenueStatusPending,
	}
	pr.AddDomainEvent(NewRevenueAdmittedEvent(pr))
	return pr, nil
}

// FinalAmount is the amount credited on approval
func (p *PendingRevenue) FinalAmount() decimal.Decimal {
	if p.AdjustedAmount != nil {
		return *p.AdjustedAmount
	}
	return p.ComputedAmount
}

// Approve moves the record to APPROVED. When adjusted is non-nil it replaces
// the computed amount for crediting and is stored.
func (p *PendingRevenue) Approve(decidedBy uuid.UUID, adjusted *decimal.Decimal) error {
	if p.Status != RevenueStatusPending {
		return ErrAlreadyDecided
	}
	if adjusted != nil {
		if adjusted.IsNegative() {
			return shared.NewDomainError("INVALID_AMOUNT", "Adjusted amount cannot be negative")
		}
		if !fitsMoneyScale(*adjusted) {
			return ErrAmountScale
		}
		amt := *adjusted
		p.AdjustedAmount = &amt
	}

	p.decide(RevenueStatusApproved, decidedBy)
	p.AddDomainEvent(NewCommissionApprovedEvent(p))
	return nil
}

// Reject moves the record to REJECTED. A note is required.
func (p *PendingRevenue) Reject(decidedBy uuid.UUID, note string) error {
	if p.Status != RevenueStatusPending {
		return ErrAlreadyDecided
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return ErrRejectionNote
	}

	p.RejectionNote = note
	p.decide(RevenueStatusRejected, decidedBy)
	p.AddDomainEvent(NewCommissionRejectedEvent(p))
	return nil
}

// WasAdjusted reports whether an adjusted amount was supplied at approval
func (p *PendingRevenue) WasAdjusted() bool {
	return p.AdjustedAmount != nil
}

func (p *PendingRevenue) decide(status RevenueStatus, decidedBy uuid.UUID) {
	now := time.Now()
	p.Status = status
	p.DecidedBy = &decidedBy
	p.DecidedAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()
}
