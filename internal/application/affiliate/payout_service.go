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

// PayoutConfig holds payout policy
type PayoutConfig struct {
	// MinAmount is the smallest payout a user may request. Zero disables the check.
	MinAmount decimal.Decimal
}

// PayoutService manages withdrawal requests. Funds are debited when the
// request is made, so approval never needs the wallet lock and rejection
// returns the funds with a PAYOUT_REVERSAL entry.
type PayoutService struct {
	txScope    TransactionScope
	payoutRepo affiliate.PayoutRepository
	config     PayoutConfig
	logger     *zap.Logger
}

// NewPayoutService creates a new PayoutService
func NewPayoutService(
	txScope TransactionScope,
	payoutRepo affiliate.PayoutRepository,
	config PayoutConfig,
	logger *zap.Logger,
) *PayoutService {
	return &PayoutService{
		txScope:    txScope,
		payoutRepo: payoutRepo,
		config:     config,
		logger:     logger,
	}
}

// RequestPayout debits the user's wallet and creates a PENDING payout in one
// transaction. With insufficient funds nothing is written.
func (s *PayoutService) RequestPayout(ctx context.Context, req PayoutRequest) (*affiliate.Payout, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payout", "request")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrUserID, req.UserID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		"method", string(req.Method),
	)

	if !req.Amount.IsPositive() {
		return nil, affiliate.ErrInvalidAmount
	}
	if s.config.MinAmount.IsPositive() && req.Amount.LessThan(s.config.MinAmount) {
		return nil, shared.NewDomainError(affiliate.ErrBelowMinimumPayout.Code,
			fmt.Sprintf("Minimum payout is %s", s.config.MinAmount.String()))
	}
	if !req.Method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYOUT_METHOD", "Unsupported payout method")
	}

	var payout *affiliate.Payout
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		wallet, err := repos.WalletRepo().FindByUserIDForUpdate(ctx, req.UserID)
		if errors.Is(err, affiliate.ErrWalletNotFound) {
			return affiliate.ErrInsufficientFunds
		}
		if err != nil {
			return err
		}

		payout, err = affiliate.NewPayout(wallet, req.Amount, req.Method, req.Account)
		if err != nil {
			return err
		}
		if _, err := postEntry(ctx, repos, wallet, affiliate.DirectionDebit, affiliate.Posting{
			Kind:        affiliate.EntryKindDebitPayout,
			Amount:      req.Amount,
			ReferenceID: payout.ID,
			Description: "Payout request",
			CreatedBy:   &req.UserID,
		}); err != nil {
			return err
		}
		if err := repos.PayoutRepo().Create(ctx, payout); err != nil {
			return err
		}
		return recordEvents(ctx, repos, payout)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Info("payout request refused",
			zap.String("user_id", req.UserID.String()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", req.Amount.String()),
	)
	return payout, nil
}

// Approve authorizes a PENDING payout. The PayoutApproved event written to
// the outbox in the same transaction is the payment instruction; it is
// relayed to the payment rail after commit.
func (s *PayoutService) Approve(ctx context.Context, payoutID, decidedBy uuid.UUID) (*affiliate.Payout, error) {
	return s.transition(ctx, "approve", payoutID, affiliate.PayoutStatusPending, func(repos TransactionalRepositories, p *affiliate.Payout) error {
		return p.Approve(decidedBy)
	})
}

// Reject declines a PENDING payout and credits the amount back to the
// wallet in the same transaction.
func (s *PayoutService) Reject(ctx context.Context, payoutID, decidedBy uuid.UUID, note string) (*affiliate.Payout, error) {
	return s.transition(ctx, "reject", payoutID, affiliate.PayoutStatusPending, func(repos TransactionalRepositories, p *affiliate.Payout) error {
		if err := p.Reject(decidedBy, note); err != nil {
			return err
		}
		wallet, err := repos.WalletRepo().FindByIDForUpdate(ctx, p.WalletID)
		if err != nil {
			return err
		}
		_, err = postEntry(ctx, repos, wallet, affiliate.DirectionCredit, affiliate.Posting{
			Kind:        affiliate.EntryKindPayoutReversal,
			Amount:      p.Amount,
			ReferenceID: p.ID,
			Description: "Payout rejected",
			CreatedBy:   &decidedBy,
		})
		return err
	})
}

// Complete records settlement of an APPROVED payout by the payment rail
func (s *PayoutService) Complete(ctx context.Context, payoutID uuid.UUID, externalReference string) (*affiliate.Payout, error) {
	return s.transition(ctx, "complete", payoutID, affiliate.PayoutStatusApproved, func(_ TransactionalRepositories, p *affiliate.Payout) error {
		return p.Complete(externalReference)
	})
}

func (s *PayoutService) transition(
	ctx context.Context,
	method string,
	payoutID uuid.UUID,
	from affiliate.PayoutStatus,
	apply func(repos TransactionalRepositories, p *affiliate.Payout) error,
) (*affiliate.Payout, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payout", method)
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPayoutID, payoutID.String())

	var payout *affiliate.Payout
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payout, err = repos.PayoutRepo().FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		if payout.Status != from {
			if from == affiliate.PayoutStatusPending {
				return affiliate.ErrAlreadyDecided
			}
			return affiliate.ErrInvalidTransition
		}
		if err := apply(repos, payout); err != nil {
			return err
		}
		if err := repos.PayoutRepo().SaveTransition(ctx, payout, from); err != nil {
			return err
		}
		return recordEvents(ctx, repos, payout)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("payout transition failed",
			zap.String("payout_id", payoutID.String()),
			zap.String("action", method),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("payout updated",
		zap.String("payout_id", payoutID.String()),
		zap.String("status", string(payout.Status)),
	)
	return payout, nil
}

// GetByID returns one payout
func (s *PayoutService) GetByID(ctx context.Context, id uuid.UUID) (*PayoutResponse, error) {
	payout, err := s.payoutRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPayoutResponse(payout)
	return &resp, nil
}

// List returns payouts, newest first
func (s *PayoutService) List(ctx context.Context, filter affiliate.PayoutFilter) (*shared.Paginated[PayoutResponse], error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Unknown payout status")
	}

	items, total, err := s.payoutRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	page := toPage(items, total, filter.Page, filter.PageSize, ToPayoutResponse)
	return &page, nil
}
