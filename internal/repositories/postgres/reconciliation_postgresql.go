package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type ReconciliationPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewReconciliationPostgreSQL(db *gorm.DB) repositories.ReconciliationRepository {
	return &ReconciliationPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (r *ReconciliationPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create records a task; a second task for the same order is ignored
func (r *ReconciliationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, task *models.ReconciliationTask) error {
	err := r.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(task).Error
	if err != nil {
		return fmt.Errorf("failed to create reconciliation task: %w", err)
	}
	return nil
}

func (r *ReconciliationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ReconciliationTask, error) {
	var task models.ReconciliationTask
	if err := r.getDB(tx).WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get reconciliation task: %w", err)
	}
	return &task, nil
}

// ListDue returns pending tasks whose next attempt time has passed, oldest first
func (r *ReconciliationPostgreSQL) ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.ReconciliationTask, error) {
	var tasks []*models.ReconciliationTask
	query := r.getDB(tx).WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.ReconciliationPending, now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list due reconciliation tasks: %w", err)
	}
	return tasks, nil
}

func (r *ReconciliationPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ReconciliationFilters) ([]*models.ReconciliationTask, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.ReconciliationTask{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reconciliation tasks: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)

	var tasks []*models.ReconciliationTask
	if err := query.Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reconciliation tasks: %w", err)
	}
	return tasks, total, nil
}

func (r *ReconciliationPostgreSQL) Update(ctx context.Context, tx *gorm.DB, task *models.ReconciliationTask) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ReconciliationTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"attempts":        task.Attempts,
			"last_error":      task.LastError,
			"status":          task.Status,
			"next_attempt_at": task.NextAttemptAt,
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update reconciliation task: %w", err)
	}
	return nil
}
