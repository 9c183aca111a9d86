package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditService manages prepaid messaging credits. Sends spend them through
// the executor; this service reads balances and records purchases.
type CreditService struct {
	repo   automation.CreditRepository
	logger *zap.Logger
}

// NewCreditService creates a new CreditService
func NewCreditService(repo automation.CreditRepository, logger *zap.Logger) *CreditService {
	return &CreditService{repo: repo, logger: logger}
}

// Balance returns the affiliate's credit balance; no account reads as zero
func (s *CreditService) Balance(ctx context.Context, affiliateID uuid.UUID) (*CreditBalanceResponse, error) {
	resp := &CreditBalanceResponse{AffiliateID: affiliateID}
	account, err := s.repo.FindByAffiliate(ctx, affiliateID)
	if errors.Is(err, automation.ErrCreditNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credit account: %w", err)
	}
	resp.Balance = account.Balance
	resp.TotalTopUp = account.TotalTopUp
	resp.TotalUsed = account.TotalUsed
	return resp, nil
}

// TopUp credits purchased messages. The payment reference makes it
// idempotent: a second top-up for the same payment fails with
// ErrDuplicateCredit.
func (s *CreditService) TopUp(ctx context.Context, affiliateID uuid.UUID, amount int, paymentReference, description string) (*CreditTransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit", "top_up")
	defer span.End()

	if affiliateID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Affiliate ID cannot be empty")
	}
	if description == "" {
		description = fmt.Sprintf("Top up %d credits", amount)
	}
	txn, err := s.repo.Post(ctx, affiliateID, func(a *automation.CreditAccount) (*automation.CreditTransaction, error) {
		return a.TopUp(amount, paymentReference, description)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("messaging credits topped up",
		zap.String("affiliate_id", affiliateID.String()),
		zap.Int("amount", amount),
		zap.Int("balance", txn.BalanceAfter),
		zap.String("reference", paymentReference),
	)
	resp := ToCreditTransactionResponse(txn)
	return &resp, nil
}

// ListTransactions returns a page of the affiliate's credit movements, newest first
func (s *CreditService) ListTransactions(ctx context.Context, affiliateID uuid.UUID, page, pageSize int) (shared.Paginated[CreditTransactionResponse], error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.repo.ListTransactions(ctx, affiliateID, page, pageSize)
	if err != nil {
		return shared.Paginated[CreditTransactionResponse]{}, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return toPage(items, total, page, pageSize, ToCreditTransactionResponse), nil
}
