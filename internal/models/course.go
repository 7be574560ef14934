package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CourseType string

const (
	CourseTypeDiploma     CourseType = "diploma"
	CourseTypeShortCourse CourseType = "short_course"
)

// CurrencyZAR is the only currency courses are sold in
const CurrencyZAR = "ZAR"

type CourseCategory struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"not null;size:150"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;not null;size:150"`
	Description *string   `json:"description" gorm:"type:text"`
	Icon        *string   `json:"icon" gorm:"size:100"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CourseCategory) TableName() string {
	return "course_categories"
}

func (c *CourseCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Course struct {
	ID    string `json:"id" gorm:"primaryKey;type:uuid"`
	Title string `json:"title" gorm:"not null;size:255"`
	Slug  string `json:"slug" gorm:"uniqueIndex;not null;size:255"`

	// Long-form content, filled by admins or the content generator
	Description      *string `json:"description" gorm:"type:text"`
	ShortDescription *string `json:"short_description" gorm:"type:text"`
	Curriculum       *string `json:"curriculum" gorm:"type:text"`
	LearningOutcomes *string `json:"learning_outcomes" gorm:"type:text"`
	WhoShouldTake    *string `json:"who_should_take" gorm:"type:text"`

	CategoryID  *string    `json:"category_id" gorm:"type:uuid;index"`
	CourseType  CourseType `json:"course_type" gorm:"size:20;not null;default:short_course"`
	Price       float64    `json:"price" gorm:"type:numeric(10,2);not null;default:0"`
	ImageURL    *string    `json:"image_url" gorm:"size:500"`
	Duration    *string    `json:"duration" gorm:"size:100"`
	IsPublished bool       `json:"is_published" gorm:"default:false;index"`
	PaymentLink *string    `json:"payment_link" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Category *CourseCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Modules  []Module        `json:"modules,omitempty" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsFree reports whether the course can be granted without payment
func (c *Course) IsFree() bool {
	return c.Price <= 0
}

// PriceCents returns the price in cents, avoiding float comparison drift
func (c *Course) PriceCents() int64 {
	return ToCents(c.Price)
}

// NeedsContent reports whether generated content should be written for the course
func (c *Course) NeedsContent() bool {
	return isBlank(c.LearningOutcomes) || isBlank(c.WhoShouldTake)
}

func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

type Module struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	CourseID    string    `json:"course_id" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"not null;size:255"`
	Description *string   `json:"description" gorm:"type:text"`
	OrderIndex  int       `json:"order_index" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`

	Lessons []Lesson `json:"lessons,omitempty" gorm:"foreignKey:ModuleID"`
	Quizzes []Quiz   `json:"quizzes,omitempty" gorm:"foreignKey:ModuleID"`
}

func (Module) TableName() string {
	return "modules"
}

func (m *Module) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type Lesson struct {
	ID              string    `json:"id" gorm:"primaryKey;type:uuid"`
	ModuleID        string    `json:"module_id" gorm:"type:uuid;not null;index"`
	Title           string    `json:"title" gorm:"not null;size:255"`
	Content         *string   `json:"content" gorm:"type:text"`
	VideoURL        *string   `json:"video_url" gorm:"size:500"`
	DurationMinutes *int      `json:"duration_minutes"`
	OrderIndex      int       `json:"order_index" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`

	Module *Module `json:"module,omitempty" gorm:"foreignKey:ModuleID"`
}

func (Lesson) TableName() string {
	return "lessons"
}

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type Quiz struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	ModuleID     string    `json:"module_id" gorm:"type:uuid;not null;index"`
	Title        string    `json:"title" gorm:"not null;size:255"`
	Description  *string   `json:"description" gorm:"type:text"`
	PassingScore int       `json:"passing_score" gorm:"not null;default:70"`
	CreatedAt    time.Time `json:"created_at"`

	Module    *Module        `json:"module,omitempty" gorm:"foreignKey:ModuleID"`
	Questions []QuizQuestion `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type QuizQuestion struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	QuizID        string         `json:"quiz_id" gorm:"type:uuid;not null;index"`
	Question      string         `json:"question" gorm:"type:text;not null"`
	Options       datatypes.JSON `json:"options" gorm:"type:jsonb"`
	CorrectAnswer int            `json:"correct_answer"`
	OrderIndex    int            `json:"order_index" gorm:"not null;default:0"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

func (q *QuizQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// OptionList decodes the stored answer options
func (q *QuizQuestion) OptionList() []string {
	var options []string
	if len(q.Options) == 0 {
		return options
	}
	_ = json.Unmarshal(q.Options, &options)
	return options
}
