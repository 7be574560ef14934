package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/validator"
)

const maxRecentActivity = 100

type progressService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	now       func() time.Time
}

func NewProgressService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
) ProgressService {
	return &progressService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *progressService) MarkLessonComplete(ctx context.Context, userID, lessonID string, caps models.Capabilities) (*models.LessonProgress, error) {
	lesson, err := s.repo.Course().GetLesson(ctx, nil, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	if lesson.Module == nil {
		return nil, ErrLessonNotFound
	}
	courseID := lesson.Module.CourseID

	if err := s.requireEnrollment(ctx, userID, courseID, caps); err != nil {
		return nil, err
	}

	now := s.now()
	progress := &models.LessonProgress{
		UserID:      userID,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: &now,
	}
	if err := s.repo.Progress().UpsertLessonProgress(ctx, nil, progress); err != nil {
		return nil, fmt.Errorf("failed to save lesson progress: %w", err)
	}

	if _, err := s.refreshCompletion(ctx, userID, courseID); err != nil {
		s.logger.Warn("Failed to refresh course completion", "user_id", userID, "course_id", courseID, "error", err)
	}

	s.publish(ctx, userID, courseID)
	return progress, nil
}

// SubmitQuizAttempt scores answers server-side. Unanswered questions count as wrong.
func (s *progressService) SubmitQuizAttempt(ctx context.Context, userID, quizID string, req *QuizAttemptRequest, caps models.Capabilities) (*QuizAttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	quiz, err := s.repo.Course().GetQuiz(ctx, nil, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.Module == nil {
		return nil, ErrQuizNotFound
	}

	if err := s.requireEnrollment(ctx, userID, quiz.Module.CourseID, caps); err != nil {
		return nil, err
	}

	if len(quiz.Questions) == 0 {
		return nil, NewBusinessRuleError("quiz_empty", "This quiz has no questions",
			map[string]interface{}{"quiz_id": quizID})
	}

	score, correct := ScoreQuiz(quiz.Questions, req.Answers)

	answers, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	attempt := &models.QuizAttempt{
		UserID:      userID,
		QuizID:      quizID,
		Score:       score,
		Passed:      score >= quiz.PassingScore,
		Answers:     datatypes.JSON(answers),
		AttemptedAt: s.now(),
	}
	if err := s.repo.Progress().CreateQuizAttempt(ctx, nil, attempt); err != nil {
		return nil, fmt.Errorf("failed to save quiz attempt: %w", err)
	}

	s.logger.Info("Quiz attempt recorded", "user_id", userID, "quiz_id", quizID, "score", score, "passed", attempt.Passed)
	s.publish(ctx, userID, quiz.Module.CourseID)

	return &QuizAttemptResponse{
		Attempt:      attempt,
		Correct:      correct,
		Total:        len(quiz.Questions),
		PassingScore: quiz.PassingScore,
	}, nil
}

// ScoreQuiz returns the rounded percentage of correct answers and the raw count
func ScoreQuiz(questions []models.QuizQuestion, answers map[string]int) (int, int) {
	if len(questions) == 0 {
		return 0, 0
	}
	correct := 0
	for _, q := range questions {
		if answer, ok := answers[q.ID]; ok && answer == q.CorrectAnswer {
			correct++
		}
	}
	score := int(math.Round(float64(correct) * 100 / float64(len(questions))))
	return score, correct
}

func (s *progressService) CourseProgress(ctx context.Context, userID, courseID string, caps models.Capabilities) (*CourseProgressResponse, error) {
	if err := s.requireEnrollment(ctx, userID, courseID, caps); err != nil {
		return nil, err
	}
	return s.refreshCompletion(ctx, userID, courseID)
}

// refreshCompletion computes progress and stamps the enrollment once every lesson is done
func (s *progressService) refreshCompletion(ctx context.Context, userID, courseID string) (*CourseProgressResponse, error) {
	lessonIDs, err := s.repo.Course().ListLessonIDs(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}

	rows, err := s.repo.Progress().ListLessonProgress(ctx, nil, userID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}

	completed := 0
	for _, row := range rows {
		if row.Completed {
			completed++
		}
	}

	response := &CourseProgressResponse{
		CourseID:         courseID,
		TotalLessons:     len(lessonIDs),
		CompletedLessons: completed,
		Lessons:          rows,
	}
	if len(lessonIDs) > 0 {
		response.Percentage = int(math.Round(float64(completed) * 100 / float64(len(lessonIDs))))
	}

	if len(lessonIDs) > 0 && completed >= len(lessonIDs) {
		now := s.now()
		if err := s.repo.Enrollment().MarkCompleted(ctx, nil, userID, courseID, now); err != nil {
			return nil, err
		}
		if enrollment, err := s.repo.Enrollment().GetByUserAndCourse(ctx, nil, userID, courseID); err == nil {
			response.CompletedAt = enrollment.CompletedAt
		}
	}

	return response, nil
}

// requireEnrollment gates learner writes. Admins bypass it.
func (s *progressService) requireEnrollment(ctx context.Context, userID, courseID string, caps models.Capabilities) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if caps.Has(models.CapabilityBypassEnrollment) {
		return nil
	}
	enrolled, err := s.repo.Enrollment().Exists(ctx, nil, userID, courseID)
	if err != nil {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

func (s *progressService) RecentCompletedLessons(ctx context.Context, limit int) ([]*models.LessonProgress, error) {
	return s.repo.Progress().RecentCompletedLessons(ctx, nil, clampLimit(limit, maxRecentActivity))
}

func (s *progressService) RecentQuizAttempts(ctx context.Context, limit int) ([]*models.QuizAttempt, error) {
	return s.repo.Progress().RecentQuizAttempts(ctx, nil, clampLimit(limit, maxRecentActivity))
}

func (s *progressService) publish(ctx context.Context, userID, courseID string) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventProgressUpdated, map[string]string{
		"user_id":   userID,
		"course_id": courseID,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish progress event", "error", err)
	}
}

func clampLimit(limit, maximum int) int {
	if limit <= 0 || limit > maximum {
		return maximum
	}
	return limit
}
