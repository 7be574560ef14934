package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ===== AUTH =====

var testTokens = map[string]casdoorsdk.User{
	"student-token": {Id: "student-1", DisplayName: "Thandi Mokoena", Email: "thandi@example.com"},
	"admin-token":   {Id: "admin-1", DisplayName: "Back Office", Email: "ops@example.com", IsAdmin: true},
}

func parseTestToken(token string) (*casdoorsdk.Claims, error) {
	user, ok := testTokens[token]
	if !ok {
		return nil, errors.New("signature is invalid")
	}
	return &casdoorsdk.Claims{User: user}, nil
}

// emptyDirectory forces the middleware to fall back to token claims
type emptyDirectory struct{}

func (emptyDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}
func (emptyDirectory) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}
func (emptyDirectory) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	return nil, nil
}
func (emptyDirectory) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}
func (emptyDirectory) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}
func (emptyDirectory) ExistsByID(ctx context.Context, id string) (bool, error) { return false, nil }

func testAuth() *CasdoorAuthMiddleware {
	return newCasdoorAuthMiddleware(parseTestToken, emptyDirectory{}, testLogger())
}

// ===== SERVICES =====

type stubPayments struct {
	mu             sync.Mutex
	createUserID   string
	idempotencyKey string
	captureUserID  string
	createErr      error
	captureResult  *services.CaptureOrderResponse
}

func (s *stubPayments) CreateOrder(ctx context.Context, req *services.CreateOrderRequest, userID, idempotencyKey string) (*services.CreateOrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createUserID = userID
	s.idempotencyKey = idempotencyKey
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &services.CreateOrderResponse{
		OrderID:     "ORDER-1",
		ApprovalURL: "https://www.paypal.test/checkoutnow?token=ORDER-1",
		Status:      "CREATED",
	}, nil
}

func (s *stubPayments) CaptureOrder(ctx context.Context, req *services.CaptureOrderRequest, authUserID string) (*services.CaptureOrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureUserID = authUserID
	if s.captureResult != nil {
		return s.captureResult, nil
	}
	return &services.CaptureOrderResponse{Status: "COMPLETED", OrderID: req.OrderID, EnrollmentStatus: services.EnrollmentStatusCreated}, nil
}

func (s *stubPayments) GetOrder(ctx context.Context, orderID string) (*services.OrderView, error) {
	if orderID != "ORDER-1" {
		return nil, services.ErrOrderNotFound
	}
	return &services.OrderView{OrderID: orderID, CourseID: "course-1", CourseSlug: "anti-money-laundering", Status: models.PendingOrderCreated}, nil
}

func (s *stubPayments) ClaimOrder(ctx context.Context, orderID, userID string) (*services.CaptureOrderResponse, error) {
	return &services.CaptureOrderResponse{Status: "COMPLETED", OrderID: orderID, EnrollmentStatus: services.EnrollmentStatusCreated}, nil
}

func (s *stubPayments) CreatePaymentLink(ctx context.Context, req *services.PaymentLinkRequest) (*services.CreateOrderResponse, error) {
	return &services.CreateOrderResponse{OrderID: "ORDER-2", ApprovalURL: "https://www.paypal.test/checkoutnow?token=ORDER-2", Status: "CREATED"}, nil
}

type stubEnrollments struct {
	exported  bool
	lastQuery repositories.EnrollmentFilters
}

func (s *stubEnrollments) Enroll(ctx context.Context, req *services.ManualEnrollmentRequest, adminID string) (*models.Enrollment, error) {
	if req.UserID == "student-1" {
		return nil, services.ErrAlreadyEnrolled
	}
	return &models.Enrollment{ID: "e-1", UserID: req.UserID, CourseID: req.CourseID, Source: models.EnrollmentSourceAdmin}, nil
}

func (s *stubEnrollments) EnrollFree(ctx context.Context, courseSlug, userID string) (*models.Enrollment, error) {
	return &models.Enrollment{ID: "e-2", UserID: userID, CourseID: "course-free", Source: models.EnrollmentSourceFree}, nil
}

func (s *stubEnrollments) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	return courseID == "course-1", nil
}

func (s *stubEnrollments) ListMine(ctx context.Context, userID string) ([]*models.Enrollment, error) {
	return []*models.Enrollment{{ID: "e-1", UserID: userID, CourseID: "course-1"}}, nil
}

func (s *stubEnrollments) List(ctx context.Context, filters repositories.EnrollmentFilters) (*services.EnrollmentListResponse, error) {
	s.lastQuery = filters
	return &services.EnrollmentListResponse{Enrollments: []*services.EnrollmentSummary{}, Limit: filters.Limit}, nil
}

func (s *stubEnrollments) Export(ctx context.Context, filters repositories.EnrollmentFilters) ([]byte, error) {
	s.exported = true
	return []byte("PK-xlsx"), nil
}

type stubCourses struct{}

func (stubCourses) List(ctx context.Context, filters repositories.CourseFilters) (*services.CourseListResponse, error) {
	return &services.CourseListResponse{Courses: []*models.Course{}, Limit: filters.Limit}, nil
}

func (stubCourses) GetBySlug(ctx context.Context, slug string, caps models.Capabilities) (*models.Course, error) {
	if slug == "draft" && !caps.Has(models.CapabilityManageContent) {
		return nil, services.ErrCourseNotFound
	}
	return &models.Course{ID: "course-1", Slug: slug, Title: "Anti Money Laundering"}, nil
}

func (stubCourses) GetContent(ctx context.Context, slug, userID string, caps models.Capabilities) (*services.CourseContentResponse, error) {
	if !caps.Has(models.CapabilityBypassEnrollment) {
		return nil, services.ErrNotEnrolled
	}
	return &services.CourseContentResponse{Course: &models.Course{ID: "course-1", Slug: slug}}, nil
}

func (stubCourses) ListCategories(ctx context.Context) ([]*models.CourseCategory, error) {
	return []*models.CourseCategory{}, nil
}

type stubProgress struct{}

func (stubProgress) MarkLessonComplete(ctx context.Context, userID, lessonID string, caps models.Capabilities) (*models.LessonProgress, error) {
	return &models.LessonProgress{UserID: userID, LessonID: lessonID, Completed: true}, nil
}

func (stubProgress) SubmitQuizAttempt(ctx context.Context, userID, quizID string, req *services.QuizAttemptRequest, caps models.Capabilities) (*services.QuizAttemptResponse, error) {
	return &services.QuizAttemptResponse{Attempt: &models.QuizAttempt{UserID: userID, QuizID: quizID, Score: 100, Passed: true}, Correct: len(req.Answers), Total: len(req.Answers), PassingScore: 70}, nil
}

func (stubProgress) CourseProgress(ctx context.Context, userID, courseID string, caps models.Capabilities) (*services.CourseProgressResponse, error) {
	return &services.CourseProgressResponse{CourseID: courseID, TotalLessons: 4, CompletedLessons: 2, Percentage: 50}, nil
}

func (stubProgress) RecentCompletedLessons(ctx context.Context, limit int) ([]*models.LessonProgress, error) {
	return []*models.LessonProgress{}, nil
}

func (stubProgress) RecentQuizAttempts(ctx context.Context, limit int) ([]*models.QuizAttempt, error) {
	return []*models.QuizAttempt{}, nil
}

type stubContent struct {
	lastLimit  int
	lastDryRun bool
}

func (s *stubContent) GenerateForCourse(ctx context.Context, courseID string, dryRun bool) (*services.GeneratedCourseContent, error) {
	s.lastDryRun = dryRun
	return &services.GeneratedCourseContent{CourseID: courseID, DryRun: dryRun, Updated: !dryRun}, nil
}

func (s *stubContent) GenerateBulk(ctx context.Context, limit int) (*services.BulkGenerateResult, error) {
	s.lastLimit = limit
	return &services.BulkGenerateResult{Message: "Batch complete", Errors: []string{}}, nil
}

type stubReconciliation struct{}

func (stubReconciliation) RunDue(ctx context.Context) (*services.ReconciliationRunResult, error) {
	return &services.ReconciliationRunResult{Due: 1, Resolved: 1}, nil
}

func (stubReconciliation) Retry(ctx context.Context, taskID string) (*models.ReconciliationTask, error) {
	if taskID != "task-1" {
		return nil, services.ErrTaskNotFound
	}
	return &models.ReconciliationTask{ID: taskID, Status: models.ReconciliationResolved}, nil
}

func (stubReconciliation) List(ctx context.Context, filters repositories.ReconciliationFilters) (*services.ReconciliationListResponse, error) {
	return &services.ReconciliationListResponse{Tasks: []*models.ReconciliationTask{}, Limit: filters.Limit}, nil
}

func (stubReconciliation) Start() error                   { return nil }
func (stubReconciliation) Stop(ctx context.Context) error { return nil }

type stubDashboard struct{}

func (stubDashboard) GetStats(ctx context.Context) (*services.DashboardStatsResponse, error) {
	return &services.DashboardStatsResponse{TotalCourses: 12, TotalEnrollments: 40, TotalStudents: 31}, nil
}

type stubServiceManager struct {
	payments    *stubPayments
	enrollments *stubEnrollments
	content     *stubContent
	healthErr   error
}

func newStubServiceManager() *stubServiceManager {
	return &stubServiceManager{
		payments:    &stubPayments{},
		enrollments: &stubEnrollments{},
		content:     &stubContent{},
	}
}

func (m *stubServiceManager) Payment() services.PaymentService               { return m.payments }
func (m *stubServiceManager) Enrollment() services.EnrollmentService         { return m.enrollments }
func (m *stubServiceManager) Course() services.CourseService                 { return stubCourses{} }
func (m *stubServiceManager) Progress() services.ProgressService             { return stubProgress{} }
func (m *stubServiceManager) Content() services.ContentService               { return m.content }
func (m *stubServiceManager) Reconciliation() services.ReconciliationService { return stubReconciliation{} }
func (m *stubServiceManager) Dashboard() services.DashboardService           { return stubDashboard{} }
func (m *stubServiceManager) Notification() *services.NotificationService    { return nil }
func (m *stubServiceManager) Initialize(ctx context.Context) error           { return nil }
func (m *stubServiceManager) HealthCheck(ctx context.Context) error          { return m.healthErr }
func (m *stubServiceManager) Shutdown(ctx context.Context) error             { return nil }

// ===== ROUTER =====

func newTestRouter(sm services.ServiceManager) *gin.Engine {
	router := gin.New()
	logger := testLogger()
	SetupMiddleware(router, logger)
	newHandlerManager(sm, logger, testAuth()).SetupRoutes(router)
	return router
}

func doRequest(router http.Handler, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
