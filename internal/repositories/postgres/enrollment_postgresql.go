package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ccpq/academy-service/internal/cache"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type EnrollmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewEnrollmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *EnrollmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func enrollmentKey(userID, courseID string) string {
	return fmt.Sprintf("user:%s:course:%s", userID, courseID)
}

// Upsert inserts with ON CONFLICT (user_id, course_id) DO NOTHING
func (e *EnrollmentPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) (bool, error) {
	result := e.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(enrollment)
	if result.Error != nil {
		return false, fmt.Errorf("failed to upsert enrollment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Create inserts an enrollment; the unique index rejects a second row for the pair
func (e *EnrollmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error {
	if err := e.getDB(tx).WithContext(ctx).Create(enrollment).Error; err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

func (e *EnrollmentPostgreSQL) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := e.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &enrollment, nil
}

// Exists checks the ledger. Only positive answers are cached since rows are never removed.
func (e *EnrollmentPostgreSQL) Exists(ctx context.Context, tx *gorm.DB, userID, courseID string) (bool, error) {
	key := enrollmentKey(userID, courseID)
	if tx == nil {
		if cached, err := e.cacheManager.Enrollment.Exists(ctx, key); err == nil && cached {
			return true, nil
		}
	}

	var count int64
	err := e.getDB(tx).WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}

	if count > 0 {
		e.cacheManager.Enrollment.Set(ctx, key, true, cache.EnrollmentCacheConfig.TTL)
	}
	return count > 0, nil
}

// ListByUser returns the user's enrollments with course summaries, newest first
func (e *EnrollmentPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error) {
	var enrollments []*models.Enrollment
	err := e.cacheManager.Enrollment.CacheOrExecute(ctx, fmt.Sprintf("user:%s:list", userID), &enrollments, cache.EnrollmentCacheConfig.TTL, func() (interface{}, error) {
		var rows []*models.Enrollment
		err := e.getDB(tx).WithContext(ctx).
			Preload("Course").
			Where("user_id = ?", userID).
			Order("enrolled_at DESC").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list user enrollments: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// List retrieves enrollments with filters and pagination
func (e *EnrollmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.EnrollmentFilters) ([]*models.Enrollment, int64, error) {
	query := e.getDB(tx).WithContext(ctx).Model(&models.Enrollment{})
	query = e.helpers.ApplyEnrollmentFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	query = e.helpers.ApplyPaginationAndSort(query, "enrolled_at", "desc", filters.Limit, filters.Offset)

	var enrollments []*models.Enrollment
	if err := query.Preload("Course").Find(&enrollments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list enrollments: %w", err)
	}

	return enrollments, total, nil
}

// MarkCompleted sets completed_at once; later calls leave the first timestamp
func (e *EnrollmentPostgreSQL) MarkCompleted(ctx context.Context, tx *gorm.DB, userID, courseID string, at time.Time) error {
	result := e.getDB(tx).WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND completed_at IS NULL", userID, courseID).
		Update("completed_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark enrollment completed: %w", result.Error)
	}
	return nil
}
