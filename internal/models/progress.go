package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LessonProgress is upsert-only on (user_id, lesson_id)
type LessonProgress struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string     `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_lesson_progress_user_lesson"`
	LessonID    string     `json:"lesson_id" gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_user_lesson"`
	Completed   bool       `json:"completed" gorm:"default:false"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Lesson *Lesson `json:"lesson,omitempty" gorm:"foreignKey:LessonID"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

func (p *LessonProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type QuizAttempt struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string         `json:"user_id" gorm:"not null;size:255;index"`
	QuizID      string         `json:"quiz_id" gorm:"type:uuid;not null;index"`
	Score       int            `json:"score" gorm:"not null"`
	Passed      bool           `json:"passed" gorm:"not null;default:false"`
	Answers     datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	AttemptedAt time.Time      `json:"attempted_at" gorm:"not null;index"`

	Quiz *Quiz `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func (a *QuizAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}
	return nil
}
