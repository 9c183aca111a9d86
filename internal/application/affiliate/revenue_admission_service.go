package affiliate

import (
	"context"
	"errors"
	"fmt"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RevenueAdmissionService turns attributed sales into PENDING revenue
// records. Admission never touches a wallet.
type RevenueAdmissionService struct {
	txScope     TransactionScope
	revenueRepo affiliate.PendingRevenueRepository
	logger      *zap.Logger
}

// NewRevenueAdmissionService creates a new RevenueAdmissionService
func NewRevenueAdmissionService(
	txScope TransactionScope,
	revenueRepo affiliate.PendingRevenueRepository,
	logger *zap.Logger,
) *RevenueAdmissionService {
	return &RevenueAdmissionService{
		txScope:     txScope,
		revenueRepo: revenueRepo,
		logger:      logger,
	}
}

// Admit records a commission awaiting review. A source transaction is
// admitted at most once; repeats fail with ErrDuplicateRevenue.
func (s *RevenueAdmissionService) Admit(ctx context.Context, sourceTransactionID string, affiliateID uuid.UUID, computedAmount decimal.Decimal) (*affiliate.PendingRevenue, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "revenue", "admit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrUserID, affiliateID.String(),
		telemetry.SpanAttrAmount, computedAmount.String(),
		"source_transaction_id", sourceTransactionID,
	)

	revenue, err := affiliate.NewPendingRevenue(sourceTransactionID, affiliateID, computedAmount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.RevenueRepo().FindBySourceTransactionID(ctx, revenue.SourceTransactionID)
		if err != nil && !errors.Is(err, affiliate.ErrRevenueNotFound) {
			return fmt.Errorf("failed to check source transaction: %w", err)
		}
		if existing != nil {
			return affiliate.ErrDuplicateRevenue
		}
		if err := repos.RevenueRepo().Create(ctx, revenue); err != nil {
			return err
		}
		return recordEvents(ctx, repos, revenue)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("revenue admitted",
		zap.String("pending_revenue_id", revenue.ID.String()),
		zap.String("affiliate_id", affiliateID.String()),
		zap.String("source_transaction_id", revenue.SourceTransactionID),
		zap.String("amount", computedAmount.String()),
	)
	return revenue, nil
}

// AdmitSale computes the commission for a sale with the affiliate's rule
// and admits it
func (s *RevenueAdmissionService) AdmitSale(ctx context.Context, sourceTransactionID string, affiliateID uuid.UUID, saleAmount decimal.Decimal, rule affiliate.CommissionRule) (*affiliate.PendingRevenue, error) {
	amount, err := rule.Calculate(saleAmount)
	if err != nil {
		return nil, err
	}
	return s.Admit(ctx, sourceTransactionID, affiliateID, amount)
}

// GetByID returns one pending revenue record
func (s *RevenueAdmissionService) GetByID(ctx context.Context, id uuid.UUID) (*PendingRevenueResponse, error) {
	revenue, err := s.revenueRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPendingRevenueResponse(revenue)
	return &resp, nil
}

// List returns pending revenue records, newest first
func (s *RevenueAdmissionService) List(ctx context.Context, filter affiliate.RevenueFilter) (*shared.Paginated[PendingRevenueResponse], error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Unknown revenue status")
	}

	items, total, err := s.revenueRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending revenue: %w", err)
	}
	page := toPage(items, total, filter.Page, filter.PageSize, ToPendingRevenueResponse)
	return &page, nil
}
