package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/cache"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type CoursePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (c *CoursePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

// GetByID retrieves a course by ID with caching
func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("failed to get course: %w", gorm.ErrRecordNotFound)
	}
	var course models.Course
	err := c.cacheManager.Course.CacheOrExecute(ctx, "id:"+id, &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		if err := c.getDB(tx).WithContext(ctx).Preload("Category").First(&dbCourse, "id = ?", id).Error; err != nil {
			return nil, fmt.Errorf("failed to get course: %w", err)
		}
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetBySlug retrieves a course by its URL slug with caching
func (c *CoursePostgreSQL) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Course, error) {
	var course models.Course
	err := c.cacheManager.Course.CacheOrExecute(ctx, "slug:"+slug, &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		if err := c.getDB(tx).WithContext(ctx).Preload("Category").First(&dbCourse, "slug = ?", slug).Error; err != nil {
			return nil, fmt.Errorf("failed to get course by slug: %w", err)
		}
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetWithContent loads modules, lessons, quizzes and questions in display order
func (c *CoursePostgreSQL) GetWithContent(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	var course models.Course
	err := c.cacheManager.Course.CacheOrExecute(ctx, "content:"+id, &course, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		err := c.getDB(tx).WithContext(ctx).
			Preload("Category").
			Preload("Modules", func(db *gorm.DB) *gorm.DB {
				return db.Order("modules.order_index ASC")
			}).
			Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
				return db.Order("lessons.order_index ASC")
			}).
			Preload("Modules.Quizzes").
			Preload("Modules.Quizzes.Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("quiz_questions.order_index ASC")
			}).
			First(&dbCourse, "id = ?", id).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get course content: %w", err)
		}
		return &dbCourse, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// List retrieves courses with filters and pagination
func (c *CoursePostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	query := c.getDB(tx).WithContext(ctx).Model(&models.Course{})
	query = c.helpers.ApplyCourseFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count courses: %w", err)
	}

	query = c.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var courses []*models.Course
	if err := query.Preload("Category").Find(&courses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list courses: %w", err)
	}

	return courses, total, nil
}

// ListCategories returns every category ordered by name
func (c *CoursePostgreSQL) ListCategories(ctx context.Context, tx *gorm.DB) ([]*models.CourseCategory, error) {
	var categories []*models.CourseCategory
	err := c.cacheManager.Course.CacheOrExecute(ctx, "categories", &categories, cache.CourseCacheConfig.TTL, func() (interface{}, error) {
		var rows []*models.CourseCategory
		if err := c.getDB(tx).WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ===== CONTENT GENERATION =====

func (c *CoursePostgreSQL) needingContent(ctx context.Context, tx *gorm.DB) *gorm.DB {
	return c.getDB(tx).WithContext(ctx).
		Model(&models.Course{}).
		Where("is_published = ?", true).
		Where("(learning_outcomes IS NULL OR learning_outcomes = '' OR who_should_take IS NULL OR who_should_take = '')")
}

// ListNeedingContent returns published courses missing outcomes or audience text
func (c *CoursePostgreSQL) ListNeedingContent(ctx context.Context, tx *gorm.DB, limit int) ([]*models.Course, error) {
	var courses []*models.Course
	query := c.needingContent(ctx, tx).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to list courses needing content: %w", err)
	}
	return courses, nil
}

func (c *CoursePostgreSQL) CountNeedingContent(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	if err := c.needingContent(ctx, tx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count courses needing content: %w", err)
	}
	return count, nil
}

var contentColumns = map[string]bool{
	"description":       true,
	"short_description": true,
	"curriculum":        true,
	"learning_outcomes": true,
	"who_should_take":   true,
}

// UpdateContent writes generated text columns; unknown columns are rejected
func (c *CoursePostgreSQL) UpdateContent(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	for column := range fields {
		if !contentColumns[column] {
			return fmt.Errorf("column %q is not a content column", column)
		}
	}

	result := c.getDB(tx).WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update course content: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update course content: %w", gorm.ErrRecordNotFound)
	}

	return nil
}

// ===== LESSONS AND QUIZZES =====

func (c *CoursePostgreSQL) GetLesson(ctx context.Context, tx *gorm.DB, lessonID string) (*models.Lesson, error) {
	if !isUUID(lessonID) {
		return nil, fmt.Errorf("failed to get lesson: %w", gorm.ErrRecordNotFound)
	}
	var lesson models.Lesson
	if err := c.getDB(tx).WithContext(ctx).Preload("Module").First(&lesson, "id = ?", lessonID).Error; err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &lesson, nil
}

func (c *CoursePostgreSQL) GetQuiz(ctx context.Context, tx *gorm.DB, quizID string) (*models.Quiz, error) {
	if !isUUID(quizID) {
		return nil, fmt.Errorf("failed to get quiz: %w", gorm.ErrRecordNotFound)
	}
	var quiz models.Quiz
	err := c.getDB(tx).WithContext(ctx).
		Preload("Module").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_questions.order_index ASC")
		}).
		First(&quiz, "id = ?", quizID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &quiz, nil
}

// ListLessonIDs returns the ids of every lesson in the course
func (c *CoursePostgreSQL) ListLessonIDs(ctx context.Context, tx *gorm.DB, courseID string) ([]string, error) {
	var ids []string
	err := c.getDB(tx).WithContext(ctx).
		Model(&models.Lesson{}).
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("modules.course_id = ?", courseID).
		Order("modules.order_index ASC, lessons.order_index ASC").
		Pluck("lessons.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson ids: %w", err)
	}
	return ids, nil
}

// isUUID guards uuid columns; postgres rejects malformed literals with a syntax error
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func likePattern(query string) string {
	return "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
}
