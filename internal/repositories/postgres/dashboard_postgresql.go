package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) repositories.DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// ===== DASHBOARD STATS =====

func (r *dashboardRepository) GetTotalCourses(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64

	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.Course{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get total courses: %w", err)
	}

	return count, nil
}

func (r *dashboardRepository) GetTotalEnrollments(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64

	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.Enrollment{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get total enrollments: %w", err)
	}

	return count, nil
}

// GetTotalStudents counts distinct enrolled users
func (r *dashboardRepository) GetTotalStudents(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64

	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.Enrollment{}).
		Distinct("user_id").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get total students: %w", err)
	}

	return count, nil
}

func (r *dashboardRepository) GetCompletedLessons(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64

	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.LessonProgress{}).
		Where("completed = ?", true).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get completed lessons: %w", err)
	}

	return count, nil
}

func (r *dashboardRepository) GetOpenReconciliations(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64

	if err := r.getDB(tx).WithContext(ctx).
		Model(&models.ReconciliationTask{}).
		Where("status = ?", models.ReconciliationPending).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get open reconciliations: %w", err)
	}

	return count, nil
}
