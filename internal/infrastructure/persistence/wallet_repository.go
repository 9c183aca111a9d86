package persistence

import (
	"context"
	"errors"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWalletRepository implements affiliate.WalletRepository using GORM
type GormWalletRepository struct {
	db *gorm.DB
}

// NewGormWalletRepository creates a new GormWalletRepository
func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// FindByID finds a wallet by ID
func (r *GormWalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*affiliate.Wallet, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByUserID finds the wallet owned by a user
func (r *GormWalletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*affiliate.Wallet, error) {
	return r.findOne(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

// FindByIDForUpdate finds a wallet by ID with a row-level lock (SELECT ... FOR UPDATE)
func (r *GormWalletRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*affiliate.Wallet, error) {
	return r.findOne(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByUserIDForUpdate finds a user's wallet with a row-level lock
func (r *GormWalletRepository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*affiliate.Wallet, error) {
	return r.findOne(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID))
}

// Create inserts a new wallet. A concurrent insert for the same user is
// swallowed by ON CONFLICT so the caller's transaction stays usable.
func (r *GormWalletRepository) Create(ctx context.Context, wallet *affiliate.Wallet) error {
	model := models.WalletModelFromDomain(wallet)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

func (r *GormWalletRepository) findOne(query *gorm.DB) (*affiliate.Wallet, error) {
	var model models.WalletModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, affiliate.ErrWalletNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormWalletRepository implements WalletRepository
var _ affiliate.WalletRepository = (*GormWalletRepository)(nil)
