package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/models"
)

// EnrollmentRepository owns the enrollment ledger.
// The (user_id, course_id) unique index is the only concurrency guard.
type EnrollmentRepository interface {
	// Upsert inserts the row or does nothing when the pair already exists.
	// created is false when an existing row was kept.
	Upsert(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) (created bool, err error)
	// Create is a strict insert; a duplicate pair returns gorm.ErrDuplicatedKey
	Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error

	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*models.Enrollment, error)
	Exists(ctx context.Context, tx *gorm.DB, userID, courseID string) (bool, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error)
	List(ctx context.Context, tx *gorm.DB, filters EnrollmentFilters) ([]*models.Enrollment, int64, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, userID, courseID string, at time.Time) error
}

// ProgressRepository stores lesson completion and quiz attempts
type ProgressRepository interface {
	UpsertLessonProgress(ctx context.Context, tx *gorm.DB, progress *models.LessonProgress) error
	ListLessonProgress(ctx context.Context, tx *gorm.DB, userID string, lessonIDs []string) ([]*models.LessonProgress, error)
	CreateQuizAttempt(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	ListQuizAttempts(ctx context.Context, tx *gorm.DB, userID, quizID string) ([]*models.QuizAttempt, error)

	// Back-office listings, newest first
	RecentCompletedLessons(ctx context.Context, tx *gorm.DB, limit int) ([]*models.LessonProgress, error)
	RecentQuizAttempts(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error)
}
