package event

import (
	"github.com/eksporyuk/backend/internal/domain/affiliate"
)

// RegisterAllEvents registers every domain event type with the serializer.
// The outbox relay and the conversion consumer can only decode registered types.
func RegisterAllEvents(serializer *EventSerializer) {
	// Inbound
	serializer.Register(affiliate.EventTypeConversionRecorded, &affiliate.ConversionRecordedEvent{})

	// Revenue review
	serializer.Register(affiliate.EventTypeRevenueAdmitted, &affiliate.RevenueAdmittedEvent{})
	serializer.Register(affiliate.EventTypeCommissionApproved, &affiliate.CommissionApprovedEvent{})
	serializer.Register(affiliate.EventTypeCommissionRejected, &affiliate.CommissionRejectedEvent{})

	// Payouts share one payload shape
	serializer.Register(affiliate.EventTypePayoutRequested, &affiliate.PayoutEvent{})
	serializer.Register(affiliate.EventTypePayoutApproved, &affiliate.PayoutEvent{})
	serializer.Register(affiliate.EventTypePayoutRejected, &affiliate.PayoutEvent{})
	serializer.Register(affiliate.EventTypePayoutCompleted, &affiliate.PayoutEvent{})
}
