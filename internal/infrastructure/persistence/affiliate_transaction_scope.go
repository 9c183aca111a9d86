package persistence

import (
	"context"

	appaff "github.com/eksporyuk/backend/internal/application/affiliate"
	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormAffiliateTransactionScope implements the affiliate TransactionScope using
// GORM transactions. Domain events recorded inside fn are written to the
// outbox by the same transaction.
type GormAffiliateTransactionScope struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormAffiliateTransactionScope creates a new GormAffiliateTransactionScope
func NewGormAffiliateTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver) *GormAffiliateTransactionScope {
	return &GormAffiliateTransactionScope{db: db, outbox: outbox}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormAffiliateTransactionScope) Execute(ctx context.Context, fn func(repos appaff.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormAffiliateRepositories{tx: tx, outbox: s.outbox})
	})
}

// gormAffiliateRepositories provides the affiliate repositories bound to one transaction
type gormAffiliateRepositories struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

// WalletRepo returns the wallet repository scoped to the current transaction.
func (r *gormAffiliateRepositories) WalletRepo() affiliate.WalletRepository {
	return NewGormWalletRepository(r.tx)
}

// EntryRepo returns the ledger entry repository scoped to the current transaction.
func (r *gormAffiliateRepositories) EntryRepo() affiliate.LedgerEntryRepository {
	return NewGormLedgerEntryRepository(r.tx)
}

// RevenueRepo returns the pending revenue repository scoped to the current transaction.
func (r *gormAffiliateRepositories) RevenueRepo() affiliate.PendingRevenueRepository {
	return NewGormPendingRevenueRepository(r.tx)
}

// PayoutRepo returns the payout repository scoped to the current transaction.
func (r *gormAffiliateRepositories) PayoutRepo() affiliate.PayoutRepository {
	return NewGormPayoutRepository(r.tx)
}

// Events returns a recorder writing to the outbox through the current transaction.
func (r *gormAffiliateRepositories) Events() appaff.EventRecorder {
	return &txEventRecorder{tx: r.tx, outbox: r.outbox}
}

type txEventRecorder struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

// Record saves events to the outbox. Without an outbox configured the
// events are dropped.
func (r *txEventRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if r.outbox == nil || len(events) == 0 {
		return nil
	}
	return r.outbox.SaveEvents(ctx, r.tx, events...)
}

// Ensure GormAffiliateTransactionScope implements TransactionScope
var _ appaff.TransactionScope = (*GormAffiliateTransactionScope)(nil)

// Ensure gormAffiliateRepositories implements TransactionalRepositories
var _ appaff.TransactionalRepositories = (*gormAffiliateRepositories)(nil)
