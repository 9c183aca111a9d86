package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCreditRepository implements automation.CreditRepository using GORM
type GormCreditRepository struct {
	db *gorm.DB
}

// NewGormCreditRepository creates a new GormCreditRepository
func NewGormCreditRepository(db *gorm.DB) *GormCreditRepository {
	return &GormCreditRepository{db: db}
}

// FindByAffiliate finds the affiliate's credit account
func (r *GormCreditRepository) FindByAffiliate(ctx context.Context, affiliateID uuid.UUID) (*automation.CreditAccount, error) {
	var model models.CreditAccountModel
	if err := r.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, automation.ErrCreditNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Post applies post to the locked account and writes the account and the
// transaction in one database transaction. The version check backs up the
// row lock on databases without SELECT ... FOR UPDATE.
func (r *GormCreditRepository) Post(
	ctx context.Context,
	affiliateID uuid.UUID,
	post func(*automation.CreditAccount) (*automation.CreditTransaction, error),
) (*automation.CreditTransaction, error) {
	var posted *automation.CreditTransaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh := models.CreditAccountModelFromDomain(automation.NewCreditAccount(affiliateID))
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "affiliate_id"}},
			DoNothing: true,
		}).Create(fresh).Error; err != nil {
			return err
		}

		var model models.CreditAccountModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("affiliate_id = ?", affiliateID).
			First(&model).Error; err != nil {
			return err
		}
		account := model.ToDomain()

		txn, err := post(account)
		if err != nil {
			return err
		}

		var seen int64
		if err := tx.Model(&models.CreditTransactionModel{}).
			Where("type = ? AND reference_id = ?", txn.Type, txn.ReferenceID).
			Count(&seen).Error; err != nil {
			return err
		}
		if seen > 0 {
			return automation.ErrDuplicateCredit
		}

		result := tx.Model(&models.CreditAccountModel{}).
			Where("id = ? AND version = ?", account.ID, account.Version).
			Updates(map[string]any{
				"balance":      account.Balance,
				"total_top_up": account.TotalTopUp,
				"total_used":   account.TotalUsed,
				"version":      account.Version + 1,
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		if err := tx.Create(models.CreditTransactionModelFromDomain(txn)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return automation.ErrDuplicateCredit
			}
			return err
		}
		posted = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// ListTransactions returns a page of the affiliate's credit movements, newest first
func (r *GormCreditRepository) ListTransactions(ctx context.Context, affiliateID uuid.UUID, page, pageSize int) ([]*automation.CreditTransaction, int64, error) {
	scope := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.CreditTransactionModel{}).
			Where("affiliate_id = ?", affiliateID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CreditTransactionModel
	if err := paginate(scope().Order("created_at DESC"), page, pageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*automation.CreditTransaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Ensure GormCreditRepository implements CreditRepository
var _ automation.CreditRepository = (*GormCreditRepository)(nil)
