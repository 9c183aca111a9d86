package affiliate

import (
	"context"
	"errors"
	"fmt"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ConversionHandler admits revenue for ConversionRecordedEvent. Redelivered
// conversions are acknowledged without admitting twice.
type ConversionHandler struct {
	admission *RevenueAdmissionService
	logger    *zap.Logger
}

// NewConversionHandler creates a new handler for conversion events
func NewConversionHandler(admission *RevenueAdmissionService, logger *zap.Logger) *ConversionHandler {
	return &ConversionHandler{
		admission: admission,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *ConversionHandler) EventTypes() []string {
	return []string{affiliate.EventTypeConversionRecorded}
}

// Handle admits the conversion's commission
func (h *ConversionHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	conversion, ok := event.(*affiliate.ConversionRecordedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", affiliate.EventTypeConversionRecorded),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			affiliate.EventTypeConversionRecorded, event.EventType())
	}

	_, err := h.admission.AdmitSale(ctx,
		conversion.SourceTransactionID,
		conversion.AffiliateID,
		conversion.SaleAmount,
		conversion.Rule(),
	)
	if errors.Is(err, affiliate.ErrDuplicateRevenue) {
		h.logger.Warn("conversion already admitted, skipping",
			zap.String("source_transaction_id", conversion.SourceTransactionID),
			zap.String("event_id", conversion.EventID().String()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to admit conversion %s: %w", conversion.SourceTransactionID, err)
	}
	return nil
}

// IdempotencyKey keys redeliveries by source transaction rather than event
// ID, so two events for the same sale collapse to one admission attempt.
func (h *ConversionHandler) IdempotencyKey(event shared.DomainEvent) string {
	if conversion, ok := event.(*affiliate.ConversionRecordedEvent); ok {
		return "conversion:" + conversion.SourceTransactionID
	}
	return event.EventID().String()
}

var _ shared.EventHandler = (*ConversionHandler)(nil)
