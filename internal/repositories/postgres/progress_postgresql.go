package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type ProgressPostgreSQL struct {
	db *gorm.DB
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{db: db}
}

func (p *ProgressPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

// UpsertLessonProgress writes one row per (user_id, lesson_id), updating completion on conflict
func (p *ProgressPostgreSQL) UpsertLessonProgress(ctx context.Context, tx *gorm.DB, progress *models.LessonProgress) error {
	err := p.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed", "completed_at", "updated_at"}),
		}).
		Create(progress).Error
	if err != nil {
		return fmt.Errorf("failed to upsert lesson progress: %w", err)
	}
	return nil
}

func (p *ProgressPostgreSQL) ListLessonProgress(ctx context.Context, tx *gorm.DB, userID string, lessonIDs []string) ([]*models.LessonProgress, error) {
	var rows []*models.LessonProgress
	if len(lessonIDs) == 0 {
		return rows, nil
	}
	err := p.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND lesson_id IN ?", userID, lessonIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	return rows, nil
}

func (p *ProgressPostgreSQL) CreateQuizAttempt(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	if err := p.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create quiz attempt: %w", err)
	}
	return nil
}

func (p *ProgressPostgreSQL) ListQuizAttempts(ctx context.Context, tx *gorm.DB, userID, quizID string) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	err := p.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempted_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz attempts: %w", err)
	}
	return attempts, nil
}

func (p *ProgressPostgreSQL) RecentCompletedLessons(ctx context.Context, tx *gorm.DB, limit int) ([]*models.LessonProgress, error) {
	var rows []*models.LessonProgress
	err := p.getDB(tx).WithContext(ctx).
		Preload("Lesson").
		Where("completed = ?", true).
		Order("completed_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed lessons: %w", err)
	}
	return rows, nil
}

func (p *ProgressPostgreSQL) RecentQuizAttempts(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	err := p.getDB(tx).WithContext(ctx).
		Preload("Quiz").
		Order("attempted_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz attempts: %w", err)
	}
	return attempts, nil
}
