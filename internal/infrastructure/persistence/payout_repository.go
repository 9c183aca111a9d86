package persistence

import (
	"context"
	"errors"

	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPayoutRepository implements affiliate.PayoutRepository using GORM
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewGormPayoutRepository creates a new GormPayoutRepository
func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// Create inserts a new payout
func (r *GormPayoutRepository) Create(ctx context.Context, payout *affiliate.Payout) error {
	return r.db.WithContext(ctx).Create(models.PayoutModelFromDomain(payout)).Error
}

// FindByID finds a payout by ID
func (r *GormPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*affiliate.Payout, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds a payout by ID and locks the row
func (r *GormPayoutRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*affiliate.Payout, error) {
	return r.findOne(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// SaveTransition writes the payout only while the stored status is still from
func (r *GormPayoutRepository) SaveTransition(ctx context.Context, payout *affiliate.Payout, from affiliate.PayoutStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.PayoutModel{}).
		Where("id = ? AND status = ?", payout.ID, from).
		Updates(map[string]any{
			"status":             payout.Status,
			"decided_by":         payout.DecidedBy,
			"decided_at":         payout.DecidedAt,
			"decision_note":      payout.DecisionNote,
			"completed_at":       payout.CompletedAt,
			"external_reference": payout.ExternalReference,
			"version":            payout.Version,
			"updated_at":         payout.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return affiliate.ErrAlreadyDecided
	}
	return nil
}

// List returns a page of payouts, newest first
func (r *GormPayoutRepository) List(ctx context.Context, filter affiliate.PayoutFilter) ([]*affiliate.Payout, int64, error) {
	scope := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.PayoutModel{})
		if filter.UserID != nil {
			query = query.Where("user_id = ?", *filter.UserID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		return query
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payoutModels []models.PayoutModel
	if err := paginate(scope(), filter.Page, filter.PageSize).
		Order("created_at DESC").
		Find(&payoutModels).Error; err != nil {
		return nil, 0, err
	}

	payouts := make([]*affiliate.Payout, len(payoutModels))
	for i := range payoutModels {
		payouts[i] = payoutModels[i].ToDomain()
	}
	return payouts, total, nil
}

func (r *GormPayoutRepository) findOne(query *gorm.DB) (*affiliate.Payout, error) {
	var model models.PayoutModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, affiliate.ErrPayoutNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormPayoutRepository implements PayoutRepository
var _ affiliate.PayoutRepository = (*GormPayoutRepository)(nil)
