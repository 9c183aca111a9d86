package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormExecutionLogRepository implements automation.ExecutionLogRepository using GORM.
// Status changes are conditional updates; RowsAffected tells the caller
// whether it won.
type GormExecutionLogRepository struct {
	db *gorm.DB
}

// NewGormExecutionLogRepository creates a new GormExecutionLogRepository
func NewGormExecutionLogRepository(db *gorm.DB) *GormExecutionLogRepository {
	return &GormExecutionLogRepository{db: db}
}

// CreateIfAbsent inserts the log unless a live log exists for (step, lead)
func (r *GormExecutionLogRepository) CreateIfAbsent(ctx context.Context, log *automation.ExecutionLog) (bool, error) {
	model, err := models.ExecutionLogModelFromDomain(log)
	if err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "step_id"}, {Name: "lead_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "status <> 'CANCELLED'"},
			}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByID finds an execution log by ID
func (r *GormExecutionLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*automation.ExecutionLog, error) {
	var model models.ExecutionLogModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, automation.ErrLogNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue returns scheduled logs due at now, oldest first
func (r *GormExecutionLogRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*automation.ExecutionLog, error) {
	var logModels []models.ExecutionLogModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", automation.StatusScheduled, now.UTC()).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return toExecutionLogs(logModels), nil
}

// Claim moves a scheduled log to SENT
func (r *GormExecutionLogRepository) Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	return r.transition(
		r.db.WithContext(ctx).Where("id = ? AND status = ?", id, automation.StatusScheduled),
		map[string]any{
			"status":     automation.StatusSent,
			"started_at": at,
			"updated_at": at,
		})
}

// ConfirmSent stamps completion on a claimed, unconfirmed log
func (r *GormExecutionLogRepository) ConfirmSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	return r.transition(
		r.db.WithContext(ctx).Where("id = ? AND status = ? AND completed_at IS NULL", id, automation.StatusSent),
		map[string]any{
			"completed_at": at,
			"updated_at":   at,
		})
}

// MarkFailed fails a claimed, unconfirmed log
func (r *GormExecutionLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, reason string) (bool, error) {
	at = at.UTC()
	return r.transition(
		r.db.WithContext(ctx).Where("id = ? AND status = ? AND completed_at IS NULL", id, automation.StatusSent),
		map[string]any{
			"status":        automation.StatusFailed,
			"error_message": reason,
			"completed_at":  at,
			"updated_at":    at,
		})
}

// CancelScheduled cancels every scheduled log of the lead in the automation
func (r *GormExecutionLogRepository) CancelScheduled(ctx context.Context, automationID, leadID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ExecutionLogModel{}).
		Where("automation_id = ? AND lead_id = ? AND status = ?", automationID, leadID, automation.StatusScheduled).
		Updates(map[string]any{
			"status":     automation.StatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// FailStaleClaims fails logs claimed before the cutoff that never got confirmed
func (r *GormExecutionLogRepository) FailStaleClaims(ctx context.Context, claimedBefore time.Time, reason string) (int64, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.ExecutionLogModel{}).
		Where("status = ? AND completed_at IS NULL AND started_at < ?", automation.StatusSent, claimedBefore.UTC()).
		Updates(map[string]any{
			"status":        automation.StatusFailed,
			"error_message": reason,
			"completed_at":  now,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

// List returns a page of logs, most recently scheduled first
func (r *GormExecutionLogRepository) List(ctx context.Context, filter automation.ExecutionLogFilter) ([]*automation.ExecutionLog, int64, error) {
	scope := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.ExecutionLogModel{})
		if filter.AutomationID != nil {
			query = query.Where("automation_id = ?", *filter.AutomationID)
		}
		if filter.LeadID != nil {
			query = query.Where("lead_id = ?", *filter.LeadID)
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

	var logModels []models.ExecutionLogModel
	if err := paginate(scope(), filter.Page, filter.PageSize).
		Order("scheduled_for DESC").
		Find(&logModels).Error; err != nil {
		return nil, 0, err
	}
	return toExecutionLogs(logModels), total, nil
}

// CountByStatus counts the affiliate's logs per status
func (r *GormExecutionLogRepository) CountByStatus(ctx context.Context, affiliateID uuid.UUID) (map[automation.ExecutionStatus]int64, error) {
	var rows []struct {
		Status automation.ExecutionStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ExecutionLogModel{}).
		Select("status, COUNT(*) AS count").
		Where("affiliate_id = ?", affiliateID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[automation.ExecutionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *GormExecutionLogRepository) transition(query *gorm.DB, updates map[string]any) (bool, error) {
	result := query.Model(&models.ExecutionLogModel{}).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func toExecutionLogs(logModels []models.ExecutionLogModel) []*automation.ExecutionLog {
	logs := make([]*automation.ExecutionLog, len(logModels))
	for i := range logModels {
		logs[i] = logModels[i].ToDomain()
	}
	return logs
}

// Ensure GormExecutionLogRepository implements ExecutionLogRepository
var _ automation.ExecutionLogRepository = (*GormExecutionLogRepository)(nil)
