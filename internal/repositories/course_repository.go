package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/models"
)

// CourseRepository reads the catalog and writes generated course content
type CourseRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Course, error)
	GetWithContent(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error)
	List(ctx context.Context, tx *gorm.DB, filters CourseFilters) ([]*models.Course, int64, error)
	ListCategories(ctx context.Context, tx *gorm.DB) ([]*models.CourseCategory, error)

	// Content generation
	ListNeedingContent(ctx context.Context, tx *gorm.DB, limit int) ([]*models.Course, error)
	CountNeedingContent(ctx context.Context, tx *gorm.DB) (int64, error)
	UpdateContent(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error

	// Lesson and quiz lookups, with the owning module loaded
	GetLesson(ctx context.Context, tx *gorm.DB, lessonID string) (*models.Lesson, error)
	GetQuiz(ctx context.Context, tx *gorm.DB, quizID string) (*models.Quiz, error)
	ListLessonIDs(ctx context.Context, tx *gorm.DB, courseID string) ([]string, error)
}
