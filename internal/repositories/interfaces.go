package repositories

import (
	"time"

	"github.com/ccpq/academy-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type CourseFilters struct {
	CategoryID    *string            `json:"category_id"`
	CourseType    *models.CourseType `json:"course_type"`
	PublishedOnly bool               `json:"published_only"`
	Query         string             `json:"query"`
	Limit         int                `json:"limit"`
	Offset        int                `json:"offset"`
	SortBy        string             `json:"sort_by"`    // "created_at", "title", "price"
	SortOrder     string             `json:"sort_order"` // "asc", "desc"
}

type EnrollmentFilters struct {
	UserID   *string                  `json:"user_id"`
	CourseID *string                  `json:"course_id"`
	Source   *models.EnrollmentSource `json:"source"`
	DateFrom *time.Time               `json:"date_from"`
	DateTo   *time.Time               `json:"date_to"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

type ReconciliationFilters struct {
	Status *models.ReconciliationStatus `json:"status"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type CourseProgressStats struct {
	TotalLessons     int64 `json:"total_lessons"`
	CompletedLessons int64 `json:"completed_lessons"`
}
