package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type courseService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewCourseService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) CourseService {
	return &courseService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// List returns published courses only
func (s *courseService) List(ctx context.Context, filters repositories.CourseFilters) (*CourseListResponse, error) {
	filters.PublishedOnly = true
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 24
	}

	courses, total, err := s.repo.Course().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	return &CourseListResponse{
		Courses: courses,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}, nil
}

// GetBySlug hides unpublished courses from everyone who cannot manage content
func (s *courseService) GetBySlug(ctx context.Context, slug string, caps models.Capabilities) (*models.Course, error) {
	course, err := s.repo.Course().GetBySlug(ctx, nil, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if !course.IsPublished && !caps.Has(models.CapabilityManageContent) {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

// GetContent returns the lesson tree for enrolled users
func (s *courseService) GetContent(ctx context.Context, slug, userID string, caps models.Capabilities) (*CourseContentResponse, error) {
	course, err := s.GetBySlug(ctx, slug, caps)
	if err != nil {
		return nil, err
	}

	if !caps.Has(models.CapabilityBypassEnrollment) {
		if userID == "" {
			return nil, ErrUnauthorized
		}
		enrolled, err := s.repo.Enrollment().Exists(ctx, nil, userID, course.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check enrollment: %w", err)
		}
		if !enrolled {
			return nil, ErrNotEnrolled
		}
	}

	full, err := s.repo.Course().GetWithContent(ctx, nil, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course content: %w", err)
	}

	modules := make([]ModuleView, 0, len(full.Modules))
	for _, m := range full.Modules {
		view := ModuleView{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			OrderIndex:  m.OrderIndex,
			Lessons:     m.Lessons,
			Quizzes:     make([]QuizView, 0, len(m.Quizzes)),
		}
		for _, q := range m.Quizzes {
			view.Quizzes = append(view.Quizzes, quizView(q))
		}
		modules = append(modules, view)
	}

	full.Modules = nil
	return &CourseContentResponse{Course: full, Modules: modules}, nil
}

func (s *courseService) ListCategories(ctx context.Context) ([]*models.CourseCategory, error) {
	categories, err := s.repo.Course().ListCategories(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// quizView strips correct answers
func quizView(q models.Quiz) QuizView {
	view := QuizView{
		ID:           q.ID,
		Title:        q.Title,
		Description:  q.Description,
		PassingScore: q.PassingScore,
		Questions:    make([]QuestionView, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		view.Questions = append(view.Questions, QuestionView{
			ID:         question.ID,
			Question:   question.Question,
			Options:    question.OptionList(),
			OrderIndex: question.OrderIndex,
		})
	}
	return view
}
