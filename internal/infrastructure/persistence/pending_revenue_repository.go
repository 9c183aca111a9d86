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

// GormPendingRevenueRepository implements affiliate.PendingRevenueRepository using GORM
type GormPendingRevenueRepository struct {
	db *gorm.DB
}

// NewGormPendingRevenueRepository creates a new GormPendingRevenueRepository
func NewGormPendingRevenueRepository(db *gorm.DB) *GormPendingRevenueRepository {
	return &GormPendingRevenueRepository{db: db}
}

// Create inserts the record. The unique source_transaction_id turns a
// replayed conversion into ErrDuplicateRevenue.
func (r *GormPendingRevenueRepository) Create(ctx context.Context, revenue *affiliate.PendingRevenue) error {
	model := models.PendingRevenueModelFromDomain(revenue)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_transaction_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return affiliate.ErrDuplicateRevenue
	}
	return nil
}

// FindByID finds a pending revenue record by ID
func (r *GormPendingRevenueRepository) FindByID(ctx context.Context, id uuid.UUID) (*affiliate.PendingRevenue, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds a record by ID and locks the row
func (r *GormPendingRevenueRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*affiliate.PendingRevenue, error) {
	return r.findOne(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindBySourceTransactionID finds the record admitted for a source transaction
func (r *GormPendingRevenueRepository) FindBySourceTransactionID(ctx context.Context, sourceTransactionID string) (*affiliate.PendingRevenue, error) {
	return r.findOne(r.db.WithContext(ctx).Where("source_transaction_id = ?", sourceTransactionID))
}

// SaveDecision writes the decision only while the stored row is PENDING
func (r *GormPendingRevenueRepository) SaveDecision(ctx context.Context, revenue *affiliate.PendingRevenue) error {
	result := r.db.WithContext(ctx).
		Model(&models.PendingRevenueModel{}).
		Where("id = ? AND status = ?", revenue.ID, affiliate.RevenueStatusPending).
		Updates(map[string]any{
			"status":          revenue.Status,
			"adjusted_amount": revenue.AdjustedAmount,
			"decided_by":      revenue.DecidedBy,
			"decided_at":      revenue.DecidedAt,
			"rejection_note":  revenue.RejectionNote,
			"version":         revenue.Version,
			"updated_at":      revenue.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return affiliate.ErrAlreadyDecided
	}
	return nil
}

// List returns a page of records, newest first
func (r *GormPendingRevenueRepository) List(ctx context.Context, filter affiliate.RevenueFilter) ([]*affiliate.PendingRevenue, int64, error) {
	scope := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.PendingRevenueModel{})
		if filter.AffiliateID != nil {
			query = query.Where("affiliate_id = ?", *filter.AffiliateID)
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

	var revenueModels []models.PendingRevenueModel
	if err := paginate(scope(), filter.Page, filter.PageSize).
		Order("created_at DESC").
		Find(&revenueModels).Error; err != nil {
		return nil, 0, err
	}

	revenues := make([]*affiliate.PendingRevenue, len(revenueModels))
	for i := range revenueModels {
		revenues[i] = revenueModels[i].ToDomain()
	}
	return revenues, total, nil
}

func (r *GormPendingRevenueRepository) findOne(query *gorm.DB) (*affiliate.PendingRevenue, error) {
	var model models.PendingRevenueModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, affiliate.ErrRevenueNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormPendingRevenueRepository implements PendingRevenueRepository
var _ affiliate.PendingRevenueRepository = (*GormPendingRevenueRepository)(nil)
