package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EnrollmentSource string

const (
	EnrollmentSourcePayment EnrollmentSource = "payment"
	EnrollmentSourceAdmin   EnrollmentSource = "admin"
	EnrollmentSourceFree    EnrollmentSource = "free"
)

// Enrollment grants a user access to a course. (user_id, course_id) is unique.
type Enrollment struct {
	ID          string           `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string           `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_enrollments_user_course"`
	CourseID    string           `json:"course_id" gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_user_course;index"`
	Source      EnrollmentSource `json:"source" gorm:"size:20;not null;default:payment"`
	OrderID     *string          `json:"order_id" gorm:"size:64;index"`
	EnrolledAt  time.Time        `json:"enrolled_at" gorm:"not null"`
	CompletedAt *time.Time       `json:"completed_at"`

	Course *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	return nil
}

type ReconciliationStatus string

const (
	ReconciliationPending   ReconciliationStatus = "pending"
	ReconciliationResolved  ReconciliationStatus = "resolved"
	ReconciliationAbandoned ReconciliationStatus = "abandoned"
)

// ReconciliationTask records a completed capture whose enrollment write failed
type ReconciliationTask struct {
	ID            string               `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID       string               `json:"order_id" gorm:"uniqueIndex;not null;size:64"`
	UserID        string               `json:"user_id" gorm:"not null;size:255"`
	CourseID      string               `json:"course_id" gorm:"type:uuid;not null"`
	Reason        string               `json:"reason" gorm:"type:text"`
	Attempts      int                  `json:"attempts" gorm:"not null;default:0"`
	LastError     *string              `json:"last_error" gorm:"type:text"`
	Status        ReconciliationStatus `json:"status" gorm:"size:20;not null;default:pending;index"`
	NextAttemptAt time.Time            `json:"next_attempt_at" gorm:"index"`
	Metadata      datatypes.JSON       `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (ReconciliationTask) TableName() string {
	return "reconciliation_tasks"
}

func (t *ReconciliationTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Backoff returns the delay before the next retry, doubling per attempt up to an hour
func (t *ReconciliationTask) Backoff() time.Duration {
	delay := time.Minute
	for i := 1; i < t.Attempts && delay < time.Hour; i++ {
		delay *= 2
	}
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}
