package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/contentgen"
	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/metrics"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

const (
	defaultBulkLimit = 50
	maxBulkLimit     = 100
	bulkParallelism  = 5
	maxReportedErrs  = 10
)

type contentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	generator ContentGenerator
	publisher events.EventPublisher
}

func NewContentService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	generator ContentGenerator,
	publisher events.EventPublisher,
) ContentService {
	return &contentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		generator: generator,
		publisher: publisher,
	}
}

// GenerateForCourse fills in missing or thin copy for one course.
// Existing text that is long enough is kept.
func (s *contentService) GenerateForCourse(ctx context.Context, courseID string, dryRun bool) (*GeneratedCourseContent, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	content, err := s.generator.Generate(ctx, contentgen.CourseInput{
		Title:       course.Title,
		Description: deref(course.Description),
		Curriculum:  deref(course.Curriculum),
		Duration:    deref(course.Duration),
	})
	if err != nil {
		metrics.ContentGenerated.WithLabelValues("failed").Inc()
		return nil, err
	}

	updates := missingFields(course, content)
	result := &GeneratedCourseContent{
		CourseID: course.ID,
		Title:    course.Title,
		Updates:  updates,
		DryRun:   dryRun,
	}
	if len(updates) == 0 || dryRun {
		return result, nil
	}

	if err := s.apply(ctx, course.ID, updates); err != nil {
		metrics.ContentGenerated.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.ContentGenerated.WithLabelValues("updated").Inc()
	result.Updated = true
	return result, nil
}

// GenerateBulk regenerates every content field of published courses lacking
// learning outcomes or a target audience. Each batch settles before the next starts.
func (s *contentService) GenerateBulk(ctx context.Context, limit int) (*BulkGenerateResult, error) {
	if limit <= 0 {
		limit = defaultBulkLimit
	}
	limit = min(limit, maxBulkLimit)

	courses, err := s.repo.Course().ListNeedingContent(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	if len(courses) == 0 {
		return &BulkGenerateResult{Message: "All courses have content!", Errors: []string{}}, nil
	}

	remaining, err := s.repo.Course().CountNeedingContent(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}

	result := &BulkGenerateResult{Message: "Batch complete", Errors: []string{}}
	var mu sync.Mutex

	for start := 0; start < len(courses); start += bulkParallelism {
		batch := courses[start:min(start+bulkParallelism, len(courses))]

		g, gctx := errgroup.WithContext(ctx)
		for _, course := range batch {
			course := course
			g.Go(func() error {
				err := s.regenerate(gctx, course)

				mu.Lock()
				defer mu.Unlock()
				result.Processed++
				if err != nil {
					result.Failed++
					if len(result.Errors) < maxReportedErrs {
						result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", course.Title, err))
					}
					return nil
				}
				result.Updated++
				return nil
			})
		}
		// Per-course failures are recorded, never returned
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	result.Remaining = remaining - int64(result.Updated)
	s.logger.Info("Bulk content generation finished",
		"processed", result.Processed, "updated", result.Updated, "failed", result.Failed, "remaining", result.Remaining)
	return result, nil
}

func (s *contentService) regenerate(ctx context.Context, course *models.Course) error {
	s.logger.Debug("Generating course content", "course_id", course.ID, "title", course.Title)

	content, err := s.generator.Generate(ctx, contentgen.CourseInput{Title: course.Title})
	if err != nil {
		metrics.ContentGenerated.WithLabelValues("failed").Inc()
		return err
	}

	updates := map[string]string{
		"description":       content.Description,
		"short_description": content.ShortDescription,
		"curriculum":        content.Curriculum,
		"learning_outcomes": content.LearningOutcomes,
		"who_should_take":   content.WhoShouldTake,
	}
	if err := s.apply(ctx, course.ID, updates); err != nil {
		metrics.ContentGenerated.WithLabelValues("failed").Inc()
		return err
	}
	metrics.ContentGenerated.WithLabelValues("updated").Inc()
	return nil
}

func (s *contentService) apply(ctx context.Context, courseID string, updates map[string]string) error {
	fields := make(map[string]interface{}, len(updates))
	for column, value := range updates {
		fields[column] = value
	}
	if err := s.repo.Course().UpdateContent(ctx, nil, courseID, fields); err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	if s.publisher != nil {
		event := events.NewEvent(events.EventCourseUpdated, map[string]string{"course_id": courseID})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish course update", "course_id", courseID, "error", err)
		}
	}
	return nil
}

// missingFields keeps existing copy unless it is empty or shorter than the threshold
func missingFields(course *models.Course, content *contentgen.GeneratedContent) map[string]string {
	updates := map[string]string{}
	fill := func(column string, current *string, threshold int, generated string) {
		if generated != "" && len(deref(current)) < threshold {
			updates[column] = generated
		}
	}
	fill("description", course.Description, 50, content.Description)
	fill("short_description", course.ShortDescription, 20, content.ShortDescription)
	fill("curriculum", course.Curriculum, 50, content.Curriculum)
	fill("learning_outcomes", course.LearningOutcomes, 50, content.LearningOutcomes)
	fill("who_should_take", course.WhoShouldTake, 50, content.WhoShouldTake)
	return updates
}
