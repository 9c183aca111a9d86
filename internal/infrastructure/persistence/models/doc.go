// Package models contains GORM persistence models that map to database tables.
// Domain types carry no ORM tags; each model converts to and from its domain
// type with ToDomain and FromDomain.
//
//   - base.go: shared columns
//   - affiliate.go: wallets, ledger entries, pending revenue, payouts
//   - automation.go: automations, steps, execution logs
//   - outbox.go: transactional outbox
package models
