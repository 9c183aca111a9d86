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

// LedgerService owns every wallet balance change. Each posting locks the
// wallet row, checks funds, writes the new balance and appends the entry in
// one transaction.
type LedgerService struct {
	txScope    TransactionScope
	walletRepo affiliate.WalletRepository
	entryRepo  affiliate.LedgerEntryRepository
	logger     *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	walletRepo affiliate.WalletRepository,
	entryRepo affiliate.LedgerEntryRepository,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		txScope:    txScope,
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		logger:     logger,
	}
}

// Credit adds amount to a wallet
func (s *LedgerService) Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, referenceID uuid.UUID, kind affiliate.EntryKind) (*affiliate.LedgerEntry, error) {
	return s.post(ctx, "credit", walletID, affiliate.DirectionCredit, affiliate.Posting{
		Kind:        kind,
		Amount:      amount,
		ReferenceID: referenceID,
	})
}

// Debit removes amount from a wallet. It fails with ErrInsufficientFunds
// and writes nothing when the balance is short.
func (s *LedgerService) Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, referenceID uuid.UUID, kind affiliate.EntryKind) (*affiliate.LedgerEntry, error) {
	return s.post(ctx, "debit", walletID, affiliate.DirectionDebit, affiliate.Posting{
		Kind:        kind,
		Amount:      amount,
		ReferenceID: referenceID,
	})
}

// Adjust posts a manual correction. A positive amount credits, a negative
// one debits. A nil referenceID gets a fresh one.
func (s *LedgerService) Adjust(ctx context.Context, walletID uuid.UUID, signedAmount decimal.Decimal, referenceID uuid.UUID, createdBy uuid.UUID, description string) (*affiliate.LedgerEntry, error) {
	if signedAmount.IsZero() {
		return nil, affiliate.ErrInvalidAmount
	}
	if referenceID == uuid.Nil {
		referenceID = uuid.New()
	}
	direction := affiliate.DirectionCredit
	if signedAmount.IsNegative() {
		direction = affiliate.DirectionDebit
	}
	return s.post(ctx, "adjust", walletID, direction, affiliate.Posting{
		Kind:        affiliate.EntryKindAdjustment,
		Amount:      signedAmount.Abs(),
		ReferenceID: referenceID,
		Description: description,
		CreatedBy:   &createdBy,
	})
}

func (s *LedgerService) post(ctx context.Context, method string, walletID uuid.UUID, direction affiliate.Direction, p affiliate.Posting) (*affiliate.LedgerEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", method)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrWalletID, walletID.String(),
		telemetry.SpanAttrAmount, p.Amount.String(),
		telemetry.SpanAttrEntryKind, string(p.Kind),
		telemetry.SpanAttrReferenceID, p.ReferenceID.String(),
	)

	var entry *affiliate.LedgerEntry
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		wallet, err := repos.WalletRepo().FindByIDForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		entry, err = postEntry(ctx, repos, wallet, direction, p)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("ledger posting failed",
			zap.String("wallet_id", walletID.String()),
			zap.String("kind", string(p.Kind)),
			zap.String("amount", p.Amount.String()),
			zap.String("reference_id", p.ReferenceID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("ledger entry posted",
		zap.String("wallet_id", walletID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", entry.Amount.String()),
		zap.String("balance_after", entry.BalanceAfter.String()),
	)
	return entry, nil
}

// EnsureWallet returns the user's wallet, creating an empty one first if needed
func (s *LedgerService) EnsureWallet(ctx context.Context, userID uuid.UUID) (*affiliate.Wallet, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, affiliate.ErrWalletNotFound) {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		wallet, err = lockUserWallet(ctx, repos, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetWallet returns the caller's wallet summary
func (s *LedgerService) GetWallet(ctx context.Context, userID uuid.UUID) (*WalletResponse, error) {
	wallet, err := s.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := ToWalletResponse(wallet)
	return &resp, nil
}

// GetWalletByID returns a wallet summary by wallet ID
func (s *LedgerService) GetWalletByID(ctx context.Context, walletID uuid.UUID) (*WalletResponse, error) {
	wallet, err := s.walletRepo.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	resp := ToWalletResponse(wallet)
	return &resp, nil
}

// ListEntries returns a wallet's ledger history, newest first
func (s *LedgerService) ListEntries(ctx context.Context, walletID uuid.UUID, filter affiliate.LedgerEntryFilter) (*shared.Paginated[LedgerEntryResponse], error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	if filter.Kind != nil && !filter.Kind.IsValid() {
		return nil, affiliate.ErrInvalidEntryKind
	}

	entries, total, err := s.entryRepo.ListByWallet(ctx, walletID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	page := toPage(entries, total, filter.Page, filter.PageSize, ToLedgerEntryResponse)
	return &page, nil
}

// Reconcile checks a wallet's materialized balance against the sum of its
// entries and its lifetime totals.
func (s *LedgerService) Reconcile(ctx context.Context, walletID uuid.UUID) (*ReconciliationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reconcile")
	defer span.End()

	wallet, err := s.walletRepo.FindByID(ctx, walletID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	sum, err := s.entryRepo.SumByWallet(ctx, walletID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	result := &ReconciliationResult{
		WalletID:             walletID,
		Balance:              wallet.Balance,
		EntrySum:             sum,
		EarningsMinusPayouts: wallet.TotalEarnings.Sub(wallet.TotalPayouts),
	}
	result.Consistent = result.Balance.Equal(sum) && wallet.IsConsistent()

	if !result.Consistent {
		s.logger.Error("wallet out of balance",
			zap.String("wallet_id", walletID.String()),
			zap.String("balance", wallet.Balance.String()),
			zap.String("entry_sum", sum.String()),
			zap.String("earnings_minus_payouts", result.EarningsMinusPayouts.String()),
		)
	}
	return result, nil
}

// lockUserWallet locks the user's wallet row, creating the wallet first when
// the user has none yet. Two first credits racing to create the wallet both
// end up holding the lock on the same row.
func lockUserWallet(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID) (*affiliate.Wallet, error) {
	wallet, err := repos.WalletRepo().FindByUserIDForUpdate(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, affiliate.ErrWalletNotFound) {
		return nil, err
	}

	wallet, err = affiliate.NewWallet(userID)
	if err != nil {
		return nil, err
	}
	if err := repos.WalletRepo().Create(ctx, wallet); err != nil {
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
	}
	return repos.WalletRepo().FindByUserIDForUpdate(ctx, userID)
}

// postEntry applies a posting to a wallet locked in the current transaction
// and appends its entry. It is the only code path that changes a balance.
func postEntry(ctx context.Context, repos TransactionalRepositories, wallet *affiliate.Wallet, direction affiliate.Direction, p affiliate.Posting) (*affiliate.LedgerEntry, error) {
	exists, err := repos.EntryRepo().ExistsByReference(ctx, p.ReferenceID, p.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to check ledger reference: %w", err)
	}
	if exists {
		return nil, affiliate.ErrDuplicateCredit
	}

	var entry *affiliate.LedgerEntry
	if direction == affiliate.DirectionCredit {
		entry, err = wallet.Credit(p)
	} else {
		entry, err = wallet.Debit(p)
	}
	if err != nil {
		return nil, err
	}

	if err := repos.EntryRepo().Append(ctx, wallet, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
