package affiliate

import (
	"context"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CommissionApprovalService decides pending revenue. Approval and the
// wallet credit commit together or not at all.
type CommissionApprovalService struct {
	txScope TransactionScope
	logger  *zap.Logger
}

// NewCommissionApprovalService creates a new CommissionApprovalService
func NewCommissionApprovalService(txScope TransactionScope, logger *zap.Logger) *CommissionApprovalService {
	return &CommissionApprovalService{
		txScope: txScope,
		logger:  logger,
	}
}

// Approve approves a PENDING record and credits the affiliate's wallet with
// the final amount, referenced by the pending revenue ID.
//
// adjustedAmount, when set, replaces the computed amount. A final amount of
// zero approves the record without a ledger entry since entries must move
// money.
func (s *CommissionApprovalService) Approve(ctx context.Context, pendingRevenueID, decidedBy uuid.UUID, adjustedAmount *decimal.Decimal) (*ApprovalResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commission", "approve")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRevenueID, pendingRevenueID.String(),
		"decided_by", decidedBy.String(),
	)

	var result *ApprovalResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		revenue, err := repos.RevenueRepo().FindByIDForUpdate(ctx, pendingRevenueID)
		if err != nil {
			return err
		}
		if err := revenue.Approve(decidedBy, adjustedAmount); err != nil {
			return err
		}
		if err := repos.RevenueRepo().SaveDecision(ctx, revenue); err != nil {
			return err
		}

		result = &ApprovalResult{
			PendingRevenueID: revenue.ID,
			FinalAmount:      revenue.FinalAmount(),
			Adjusted:         revenue.WasAdjusted(),
		}

		if result.FinalAmount.IsPositive() {
			wallet, err := lockUserWallet(ctx, repos, revenue.AffiliateID)
			if err != nil {
				return err
			}
			entry, err := postEntry(ctx, repos, wallet, affiliate.DirectionCredit, affiliate.Posting{
				Kind:        affiliate.EntryKindCreditCommission,
				Amount:      result.FinalAmount,
				ReferenceID: revenue.ID,
				Description: "Commission for " + revenue.SourceTransactionID,
				CreatedBy:   &decidedBy,
			})
			if err != nil {
				return err
			}
			result.EntryID = &entry.ID
		}

		return recordEvents(ctx, repos, revenue)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("commission approval failed",
			zap.String("pending_revenue_id", pendingRevenueID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("commission approved",
		zap.String("pending_revenue_id", pendingRevenueID.String()),
		zap.String("final_amount", result.FinalAmount.String()),
		zap.Bool("adjusted", result.Adjusted),
		zap.String("decided_by", decidedBy.String()),
	)
	return result, nil
}

// Reject rejects a PENDING record. A note is required and no money moves.
func (s *CommissionApprovalService) Reject(ctx context.Context, pendingRevenueID, decidedBy uuid.UUID, note string) (*RejectionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commission", "reject")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrRevenueID, pendingRevenueID.String())

	var result *RejectionResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		revenue, err := repos.RevenueRepo().FindByIDForUpdate(ctx, pendingRevenueID)
		if err != nil {
			return err
		}
		if err := revenue.Reject(decidedBy, note); err != nil {
			return err
		}
		if err := repos.RevenueRepo().SaveDecision(ctx, revenue); err != nil {
			return err
		}
		result = &RejectionResult{
			PendingRevenueID: revenue.ID,
			RejectedAmount:   revenue.ComputedAmount,
		}
		return recordEvents(ctx, repos, revenue)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("commission rejected",
		zap.String("pending_revenue_id", pendingRevenueID.String()),
		zap.String("rejected_amount", result.RejectedAmount.String()),
		zap.String("decided_by", decidedBy.String()),
	)
	return result, nil
}
