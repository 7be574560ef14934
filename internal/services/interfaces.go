package services

import (
	"context"
	"time"

	"github.com/ccpq/academy-service/internal/contentgen"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/paypal"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/validator"
)

// ===== COLLABORATORS =====

// PaymentGateway is the checkout provider. *paypal.Client implements it.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, params paypal.OrderParams) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

// ContentGenerator writes course copy. *contentgen.Client implements it.
type ContentGenerator interface {
	Generate(ctx context.Context, input contentgen.CourseInput) (*contentgen.GeneratedContent, error)
}

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateOrderRequest = validator.CreateOrderRequest
type CaptureOrderRequest = validator.CaptureOrderRequest
type ManualEnrollmentRequest = validator.ManualEnrollmentRequest
type PaymentLinkRequest = validator.PaymentLinkRequest
type QuizAttemptRequest = validator.QuizAttemptRequest

type EnrollmentStatus string

const (
	EnrollmentStatusCreated  EnrollmentStatus = "created"
	EnrollmentStatusExisting EnrollmentStatus = "existing"
	EnrollmentStatusSkipped  EnrollmentStatus = "skipped"
	EnrollmentStatusPending  EnrollmentStatus = "pending"
)

type CreateOrderResponse struct {
	OrderID     string `json:"orderId"`
	ApprovalURL string `json:"approvalUrl"`
	Status      string `json:"status"`
}

type CaptureOrderResponse struct {
	Status           string           `json:"status"`
	OrderID          string           `json:"orderId"`
	PayerEmail       string           `json:"payerEmail"`
	CourseID         string           `json:"courseId"`
	CourseSlug       string           `json:"courseSlug"`
	EnrollmentStatus EnrollmentStatus `json:"enrollmentStatus"`
}

// OrderView is what the payment success page needs to render from any browser
type OrderView struct {
	OrderID    string                    `json:"orderId"`
	CourseID   string                    `json:"courseId"`
	CourseSlug string                    `json:"courseSlug"`
	Status     models.PendingOrderStatus `json:"status"`
	ExpiresAt  time.Time                 `json:"expiresAt"`
}

type EnrollmentSummary struct {
	*models.Enrollment
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

type EnrollmentListResponse struct {
	Enrollments []*EnrollmentSummary `json:"enrollments"`
	Total       int64                `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

type CourseListResponse struct {
	Courses []*models.Course `json:"courses"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type QuestionView struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	OrderIndex int      `json:"order_index"`
}

type QuizView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  *string        `json:"description"`
	PassingScore int            `json:"passing_score"`
	Questions    []QuestionView `json:"questions"`
}

type ModuleView struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	OrderIndex  int             `json:"order_index"`
	Lessons     []models.Lesson `json:"lessons"`
	Quizzes     []QuizView      `json:"quizzes"`
}

// CourseContentResponse is the unlocked lesson tree. Correct answers are never included.
type CourseContentResponse struct {
	Course  *models.Course `json:"course"`
	Modules []ModuleView   `json:"modules"`
}

type QuizAttemptResponse struct {
	Attempt      *models.QuizAttempt `json:"attempt"`
	Correct      int                 `json:"correct"`
	Total        int                 `json:"total"`
	PassingScore int                 `json:"passing_score"`
}

type CourseProgressResponse struct {
	CourseID         string                   `json:"course_id"`
	TotalLessons     int                      `json:"total_lessons"`
	CompletedLessons int                      `json:"completed_lessons"`
	Percentage       int                      `json:"percentage"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
	Lessons          []*models.LessonProgress `json:"lessons"`
}

type GeneratedCourseContent struct {
	CourseID string            `json:"course_id"`
	Title    string            `json:"title"`
	Updates  map[string]string `json:"updates"`
	Updated  bool              `json:"updated"`
	DryRun   bool              `json:"dry_run"`
}

type BulkGenerateResult struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	Remaining int64    `json:"remaining"`
}

type ReconciliationRunResult struct {
	Due           int   `json:"due"`
	Resolved      int   `json:"resolved"`
	Retried       int   `json:"retried"`
	Abandoned     int   `json:"abandoned"`
	ExpiredOrders int64 `json:"expired_orders"`
}

type ReconciliationListResponse struct {
	Tasks  []*models.ReconciliationTask `json:"tasks"`
	Total  int64                        `json:"total"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

type DashboardStatsResponse struct {
	TotalCourses        int64 `json:"total_courses"`
	TotalEnrollments    int64 `json:"total_enrollments"`
	TotalStudents       int64 `json:"total_students"`
	CompletedLessons    int64 `json:"completed_lessons"`
	OpenReconciliations int64 `json:"open_reconciliations"`
}

// ===== SERVICE INTERFACES =====

type PaymentService interface {
	// CreateOrder starts a checkout. userID may be empty for anonymous buyers.
	CreateOrder(ctx context.Context, req *CreateOrderRequest, userID, idempotencyKey string) (*CreateOrderResponse, error)
	// CaptureOrder captures an approved order and writes the enrollment.
	// authUserID takes precedence over req.UserID.
	CaptureOrder(ctx context.Context, req *CaptureOrderRequest, authUserID string) (*CaptureOrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderView, error)
	// ClaimOrder enrolls a user into a captured order that had no user at capture time
	ClaimOrder(ctx context.Context, orderID, userID string) (*CaptureOrderResponse, error)
	// CreatePaymentLink creates a provider order on behalf of an admin
	CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (*CreateOrderResponse, error)
}

type EnrollmentService interface {
	// Enroll is the admin override
	Enroll(ctx context.Context, req *ManualEnrollmentRequest, adminID string) (*models.Enrollment, error)
	EnrollFree(ctx context.Context, courseSlug, userID string) (*models.Enrollment, error)
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	ListMine(ctx context.Context, userID string) ([]*models.Enrollment, error)
	List(ctx context.Context, filters repositories.EnrollmentFilters) (*EnrollmentListResponse, error)
	Export(ctx context.Context, filters repositories.EnrollmentFilters) ([]byte, error)
}

type CourseService interface {
	List(ctx context.Context, filters repositories.CourseFilters) (*CourseListResponse, error)
	GetBySlug(ctx context.Context, slug string, caps models.Capabilities) (*models.Course, error)
	GetContent(ctx context.Context, slug, userID string, caps models.Capabilities) (*CourseContentResponse, error)
	ListCategories(ctx context.Context) ([]*models.CourseCategory, error)
}

type ProgressService interface {
	MarkLessonComplete(ctx context.Context, userID, lessonID string, caps models.Capabilities) (*models.LessonProgress, error)
	SubmitQuizAttempt(ctx context.Context, userID, quizID string, req *QuizAttemptRequest, caps models.Capabilities) (*QuizAttemptResponse, error)
	CourseProgress(ctx context.Context, userID, courseID string, caps models.Capabilities) (*CourseProgressResponse, error)

	// Back-office listings
	RecentCompletedLessons(ctx context.Context, limit int) ([]*models.LessonProgress, error)
	RecentQuizAttempts(ctx context.Context, limit int) ([]*models.QuizAttempt, error)
}

type ContentService interface {
	GenerateForCourse(ctx context.Context, courseID string, dryRun bool) (*GeneratedCourseContent, error)
	GenerateBulk(ctx context.Context, limit int) (*BulkGenerateResult, error)
}

type ReconciliationService interface {
	// RunDue retries due tasks and expires stale pending orders
	RunDue(ctx context.Context) (*ReconciliationRunResult, error)
	Retry(ctx context.Context, taskID string) (*models.ReconciliationTask, error)
	List(ctx context.Context, filters repositories.ReconciliationFilters) (*ReconciliationListResponse, error)

	// Scheduler lifecycle
	Start() error
	Stop(ctx context.Context) error
}

type DashboardService interface {
	GetStats(ctx context.Context) (*DashboardStatsResponse, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Payment() PaymentService
	Enrollment() EnrollmentService
	Course() CourseService
	Progress() ProgressService
	Content() ContentService
	Reconciliation() ReconciliationService
	Dashboard() DashboardService
	Notification() *NotificationService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
