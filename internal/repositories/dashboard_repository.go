package repositories

import (
	"context"

	"gorm.io/gorm"
)

// DashboardRepository interface for back-office statistics
type DashboardRepository interface {
	GetTotalCourses(ctx context.Context, tx *gorm.DB) (int64, error)
	GetTotalEnrollments(ctx context.Context, tx *gorm.DB) (int64, error)
	GetTotalStudents(ctx context.Context, tx *gorm.DB) (int64, error)
	GetCompletedLessons(ctx context.Context, tx *gorm.DB) (int64, error)
	GetOpenReconciliations(ctx context.Context, tx *gorm.DB) (int64, error)
}
