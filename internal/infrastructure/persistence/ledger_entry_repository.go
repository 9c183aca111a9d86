package persistence

import (
	"context"
	"errors"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerEntryRepository implements affiliate.LedgerEntryRepository using GORM.
// Entries are never updated or deleted.
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// Append inserts the entry and writes the wallet's new balance and totals.
// Callers run it inside the transaction that holds the wallet lock.
func (r *GormLedgerEntryRepository) Append(ctx context.Context, wallet *affiliate.Wallet, entry *affiliate.LedgerEntry) error {
	db := r.db.WithContext(ctx)

	if err := db.Create(models.LedgerEntryModelFromDomain(entry)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return affiliate.ErrDuplicateCredit
		}
		return err
	}

	result := db.Model(&models.WalletModel{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"balance":        wallet.Balance,
			"total_earnings": wallet.TotalEarnings,
			"total_payouts":  wallet.TotalPayouts,
			"updated_at":     wallet.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return affiliate.ErrWalletNotFound
	}
	return nil
}

// ExistsByReference reports whether an entry of kind was already posted for the reference
func (r *GormLedgerEntryRepository) ExistsByReference(ctx context.Context, referenceID uuid.UUID, kind affiliate.EntryKind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("reference_id = ? AND kind = ?", referenceID, kind).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByReference returns every entry posted for a reference, oldest first
func (r *GormLedgerEntryRepository) FindByReference(ctx context.Context, referenceID uuid.UUID) ([]*affiliate.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(entryModels), nil
}

// ListByWallet returns a page of the wallet's entries, newest first
func (r *GormLedgerEntryRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, filter affiliate.LedgerEntryFilter) ([]*affiliate.LedgerEntry, int64, error) {
	scope := func() *gorm.DB {
		query := r.db.WithContext(ctx).
			Model(&models.LedgerEntryModel{}).
			Where("wallet_id = ?", walletID)
		if filter.Kind != nil {
			query = query.Where("kind = ?", *filter.Kind)
		}
		return query
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entryModels []models.LedgerEntryModel
	if err := paginate(scope(), filter.Page, filter.PageSize).
		Order("created_at DESC").
		Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}
	return toLedgerEntries(entryModels), total, nil
}

// SumByWallet returns the signed sum of the wallet's entry amounts
func (r *GormLedgerEntryRepository) SumByWallet(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("wallet_id = ?", walletID).
		Scan(&sum).Error
	return sum, err
}

func toLedgerEntries(entryModels []models.LedgerEntryModel) []*affiliate.LedgerEntry {
	entries := make([]*affiliate.LedgerEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries
}

// Ensure GormLedgerEntryRepository implements LedgerEntryRepository
var _ affiliate.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
