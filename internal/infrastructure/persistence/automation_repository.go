package persistence

import (
	"context"
	"errors"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAutomationRepository implements automation.AutomationRepository using GORM
type GormAutomationRepository struct {
	db *gorm.DB
}

// NewGormAutomationRepository creates a new GormAutomationRepository
func NewGormAutomationRepository(db *gorm.DB) *GormAutomationRepository {
	return &GormAutomationRepository{db: db}
}

// Create inserts the automation together with its steps
func (r *GormAutomationRepository) Create(ctx context.Context, a *automation.Automation) error {
	model := models.AutomationModelFromDomain(a)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(model.Steps) == 0 {
			return nil
		}
		return tx.Create(&model.Steps).Error
	})
}

// FindByID loads an automation with its steps
func (r *GormAutomationRepository) FindByID(ctx context.Context, id uuid.UUID) (*automation.Automation, error) {
	var model models.AutomationModel
	if err := r.db.WithContext(ctx).
		Scopes(withOrderedSteps).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, automation.ErrAutomationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save updates the automation row guarded by expectedVersion and
// reconciles its steps: kept steps are updated in place, new steps are
// inserted and only removed steps are deleted. Execution logs reference
// steps by ID, so history survives every edit.
func (r *GormAutomationRepository) Save(ctx context.Context, a *automation.Automation, expectedVersion int) error {
	model := models.AutomationModelFromDomain(a)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AutomationModel{}).
			Where("id = ? AND version = ?", a.ID, expectedVersion).
			Updates(map[string]any{
				"name":         model.Name,
				"trigger_type": model.TriggerType,
				"is_active":    model.IsActive,
				"version":      model.Version,
				"updated_at":   model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.AutomationModel{}).Where("id = ?", a.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return automation.ErrAutomationNotFound
			}
			return shared.ErrConcurrencyConflict
		}
		return saveSteps(tx, a.ID, model.Steps)
	})
}

func saveSteps(tx *gorm.DB, automationID uuid.UUID, steps []models.AutomationStepModel) error {
	var stored []models.AutomationStepModel
	if err := tx.Where("automation_id = ?", automationID).Find(&stored).Error; err != nil {
		return err
	}

	wanted := make(map[uuid.UUID]models.AutomationStepModel, len(steps))
	maxOrder := 0
	for _, s := range steps {
		wanted[s.ID] = s
		maxOrder = max(maxOrder, s.StepOrder)
	}
	existing := make(map[uuid.UUID]models.AutomationStepModel, len(stored))
	var removed, moved []uuid.UUID
	for _, s := range stored {
		existing[s.ID] = s
		maxOrder = max(maxOrder, s.StepOrder)
		next, ok := wanted[s.ID]
		switch {
		case !ok:
			removed = append(removed, s.ID)
		case next.StepOrder != s.StepOrder:
			moved = append(moved, s.ID)
		}
	}

	if len(removed) > 0 {
		if err := tx.Where("id IN ?", removed).Delete(&models.AutomationStepModel{}).Error; err != nil {
			return err
		}
	}
	// Park moved steps above every used order so the final orders never
	// collide on (automation_id, step_order) midway.
	if len(moved) > 0 {
		if err := tx.Model(&models.AutomationStepModel{}).
			Where("id IN ?", moved).
			Update("step_order", gorm.Expr("step_order + ?", maxOrder)).Error; err != nil {
			return err
		}
	}

	for _, s := range steps {
		if _, ok := existing[s.ID]; !ok {
			if err := tx.Create(&s).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Model(&models.AutomationStepModel{}).
			Where("id = ?", s.ID).
			Updates(map[string]any{
				"step_order":    s.StepOrder,
				"delay_hours":   s.DelayHours,
				"email_subject": s.EmailSubject,
				"email_body":    s.EmailBody,
				"is_active":     s.IsActive,
				"updated_at":    s.UpdatedAt,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindActiveByTrigger returns the affiliate's active automations for a trigger
func (r *GormAutomationRepository) FindActiveByTrigger(ctx context.Context, affiliateID uuid.UUID, trigger automation.TriggerType) ([]*automation.Automation, error) {
	var automationModels []models.AutomationModel
	if err := r.db.WithContext(ctx).
		Scopes(withOrderedSteps).
		Where("affiliate_id = ? AND trigger_type = ? AND is_active = ?", affiliateID, trigger, true).
		Order("created_at ASC").
		Find(&automationModels).Error; err != nil {
		return nil, err
	}
	return toAutomations(automationModels), nil
}

// FindStep finds a single step by ID
func (r *GormAutomationRepository) FindStep(ctx context.Context, stepID uuid.UUID) (*automation.Step, error) {
	var model models.AutomationStepModel
	if err := r.db.WithContext(ctx).Where("id = ?", stepID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, automation.ErrStepNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// IncrementSentCount bumps the step's delivery counter in place. A removed
// step is ErrStepNotFound.
func (r *GormAutomationRepository) IncrementSentCount(ctx context.Context, stepID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.AutomationStepModel{}).
		Where("id = ?", stepID).
		UpdateColumn("sent_count", gorm.Expr("sent_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return automation.ErrStepNotFound
	}
	return nil
}

// ListByAffiliate returns a page of the affiliate's automations, newest first
func (r *GormAutomationRepository) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, filter automation.AutomationFilter) ([]*automation.Automation, int64, error) {
	scope := func() *gorm.DB {
		query := r.db.WithContext(ctx).
			Model(&models.AutomationModel{}).
			Where("affiliate_id = ?", affiliateID)
		if filter.TriggerType != nil {
			query = query.Where("trigger_type = ?", *filter.TriggerType)
		}
		if filter.IsActive != nil {
			query = query.Where("is_active = ?", *filter.IsActive)
		}
		return query
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var automationModels []models.AutomationModel
	if err := paginate(scope(), filter.Page, filter.PageSize).
		Scopes(withOrderedSteps).
		Order("created_at DESC").
		Find(&automationModels).Error; err != nil {
		return nil, 0, err
	}
	return toAutomations(automationModels), total, nil
}

// CountByAffiliate counts all and active automations of an affiliate
func (r *GormAutomationRepository) CountByAffiliate(ctx context.Context, affiliateID uuid.UUID) (int64, int64, error) {
	var total, active int64
	if err := r.db.WithContext(ctx).
		Model(&models.AutomationModel{}).
		Where("affiliate_id = ?", affiliateID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AutomationModel{}).
		Where("affiliate_id = ? AND is_active = ?", affiliateID, true).
		Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func withOrderedSteps(db *gorm.DB) *gorm.DB {
	return db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order ASC")
	})
}

func toAutomations(automationModels []models.AutomationModel) []*automation.Automation {
	automations := make([]*automation.Automation, len(automationModels))
	for i := range automationModels {
		automations[i] = automationModels[i].ToDomain()
	}
	return automations
}

// Ensure GormAutomationRepository implements AutomationRepository
var _ automation.AutomationRepository = (*GormAutomationRepository)(nil)
