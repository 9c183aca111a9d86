package affiliate

import (
	"time"

	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeConversionRecorded = "affiliate.conversion.recorded"
	EventTypeRevenueAdmitted    = "affiliate.revenue.admitted"
	EventTypeCommissionApproved = "affiliate.commission.approved"
	EventTypeCommissionRejected = "affiliate.commission.rejected"
	EventTypePayoutRequested    = "affiliate.payout.requested"
	EventTypePayoutApproved     = "affiliate.payout.approved"
	EventTypePayoutRejected     = "affiliate.payout.rejected"
	EventTypePayoutCompleted    = "affiliate.payout.completed"
)

// AggregateTypeConversion is the aggregate type of inbound conversion events
const AggregateTypeConversion = "Conversion"

// ConversionRecordedEvent is a sale attributed to an affiliate, published by
// the checkout flow. It is the input of revenue admission.
type ConversionRecordedEvent struct {
	shared.BaseDomainEvent
	SourceTransactionID string          `json:"source_transaction_id"`
	AffiliateID         uuid.UUID       `json:"affiliate_id"`
	SaleAmount          decimal.Decimal `json:"sale_amount"`
	CommissionType      CommissionType  `json:"commission_type"`
	CommissionRate      decimal.Decimal `json:"commission_rate"`
}

// NewConversionRecordedEvent creates a ConversionRecordedEvent
func NewConversionRecordedEvent(sourceTxID string, affiliateID uuid.UUID, sale decimal.Decimal, rule CommissionRule) *ConversionRecordedEvent {
	return &ConversionRecordedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeConversionRecorded, AggregateTypeConversion, affiliateID),
		SourceTransactionID: sourceTxID,
		AffiliateID:         affiliateID,
		SaleAmount:          sale,
		CommissionType:      rule.Type,
		CommissionRate:      rule.Rate,
	}
}

// Rule returns the commission rule carried by the event
func (e *ConversionRecordedEvent) Rule() CommissionRule {
	return CommissionRule{Type: e.CommissionType, Rate: e.CommissionRate}
}

// RevenueAdmittedEvent is published when a pending revenue record is created
type RevenueAdmittedEvent struct {
	shared.BaseDomainEvent
	PendingRevenueID    uuid.UUID       `json:"pending_revenue_id"`
	AffiliateID         uuid.UUID       `json:"affiliate_id"`
	SourceTransactionID string          `json:"source_transaction_id"`
	ComputedAmount      decimal.Decimal `json:"computed_amount"`
}

// NewRevenueAdmittedEvent creates a RevenueAdmittedEvent
func NewRevenueAdmittedEvent(p *PendingRevenue) *RevenueAdmittedEvent {
	return &RevenueAdmittedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeRevenueAdmitted, AggregateTypePendingRevenue, p.ID),
		PendingRevenueID:    p.ID,
		AffiliateID:         p.AffiliateID,
		SourceTransactionID: p.SourceTransactionID,
		ComputedAmount:      p.ComputedAmount,
	}
}

// CommissionApprovedEvent is published when a commission is approved and credited
type CommissionApprovedEvent struct {
	shared.BaseDomainEvent
	PendingRevenueID uuid.UUID       `json:"pending_revenue_id"`
	AffiliateID      uuid.UUID       `json:"affiliate_id"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	Adjusted         bool            `json:"adjusted"`
	DecidedBy        uuid.UUID       `json:"decided_by"`
}

// NewCommissionApprovedEvent creates a CommissionApprovedEvent
func NewCommissionApprovedEvent(p *PendingRevenue) *CommissionApprovedEvent {
	return &CommissionApprovedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCommissionApproved, AggregateTypePendingRevenue, p.ID),
		PendingRevenueID: p.ID,
		AffiliateID:      p.AffiliateID,
		FinalAmount:      p.FinalAmount(),
		Adjusted:         p.WasAdjusted(),
		DecidedBy:        derefID(p.DecidedBy),
	}
}

// CommissionRejectedEvent is published when a commission is rejected
type CommissionRejectedEvent struct {
	shared.BaseDomainEvent
	PendingRevenueID uuid.UUID       `json:"pending_revenue_id"`
	AffiliateID      uuid.UUID       `json:"affiliate_id"`
	RejectedAmount   decimal.Decimal `json:"rejected_amount"`
	Note             string          `json:"note"`
}

// NewCommissionRejectedEvent creates a CommissionRejectedEvent
func NewCommissionRejectedEvent(p *PendingRevenue) *CommissionRejectedEvent {
	return &CommissionRejectedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCommissionRejected, AggregateTypePendingRevenue, p.ID),
		PendingRevenueID: p.ID,
		AffiliateID:      p.AffiliateID,
		RejectedAmount:   p.ComputedAmount,
		Note:             p.RejectionNote,
	}
}

// PayoutEvent carries the payout state shared by all payout lifecycle events.
// PayoutApproved doubles as the payment instruction for the payment rail.
type PayoutEvent struct {
	shared.BaseDomainEvent
	PayoutID          uuid.UUID       `json:"payout_id"`
	WalletID          uuid.UUID       `json:"wallet_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PayoutStatus    `json:"status"`
	Method            PayoutMethod    `json:"method"`
	BankName          string          `json:"bank_name,omitempty"`
	AccountNumber     string          `json:"account_number,omitempty"`
	AccountName       string          `json:"account_name,omitempty"`
	Note              string          `json:"note,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
}

func newPayoutEvent(eventType string, p *Payout) *PayoutEvent {
	return &PayoutEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(eventType, AggregateTypePayout, p.ID),
		PayoutID:          p.ID,
		WalletID:          p.WalletID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		Status:            p.Status,
		Method:            p.Method,
		BankName:          p.Account.BankName,
		AccountNumber:     p.Account.AccountNumber,
		AccountName:       p.Account.AccountName,
		Note:              p.DecisionNote,
		ExternalReference: p.ExternalReference,
		DecidedAt:         p.DecidedAt,
	}
}

// NewPayoutRequestedEvent creates a payout requested event
func NewPayoutRequestedEvent(p *Payout) *PayoutEvent {
	return newPayoutEvent(EventTypePayoutRequested, p)
}

// NewPayoutApprovedEvent creates a payout approved event
func NewPayoutApprovedEvent(p *Payout) *PayoutEvent {
	return newPayoutEvent(EventTypePayoutApproved, p)
}

// NewPayoutRejectedEvent creates a payout rejected event
func NewPayoutRejectedEvent(p *Payout) *PayoutEvent {
	return newPayoutEvent(EventTypePayoutRejected, p)
}

// NewPayoutCompletedEvent creates a payout completed event
func NewPayoutCompletedEvent(p *Payout) *PayoutEvent {
	return newPayoutEvent(EventTypePayoutCompleted, p)
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
