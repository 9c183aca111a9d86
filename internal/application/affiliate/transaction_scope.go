package affiliate

import (
	"context"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
)

// TransactionScope runs ledger work atomically. All repository calls made
// through the TransactionalRepositories passed to fn share one database
// transaction; an error returned by fn rolls everything back, including
// recorded domain events.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the affiliate repositories
// bound to the current transaction.
//
// Wallet balances are written only through EntryRepo().Append, and only
// by the posting helpers in ledger_service.go after the wallet row has been
// locked with WalletRepo().Find*ForUpdate.
type TransactionalRepositories interface {
	WalletRepo() affiliate.WalletRepository
	EntryRepo() affiliate.LedgerEntryRepository
	RevenueRepo() affiliate.PendingRevenueRepository
	PayoutRepo() affiliate.PayoutRepository
	// Events stores domain events in the outbox within the transaction
	Events() EventRecorder
}

// EventRecorder writes domain events to the transactional outbox
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// recordEvents moves the aggregate's pending events into the outbox
func recordEvents(ctx context.Context, repos TransactionalRepositories, agg shared.AggregateRoot) error {
	events := agg.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := repos.Events().Record(ctx, events...); err != nil {
		return err
	}
	agg.ClearDomainEvents()
	return nil
}
