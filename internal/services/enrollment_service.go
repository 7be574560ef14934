package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/metrics"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/validator"
)

const (
	exportSheet    = "Enrollments"
	exportPageSize = 500
)

type enrollmentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewEnrollmentService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
) EnrollmentService {
	return &enrollmentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// Enroll grants access without a capture. Priced courses need payment_received.
func (s *enrollmentService) Enroll(ctx context.Context, req *ManualEnrollmentRequest, adminID string) (*models.Enrollment, error) {
	s.logger.Info("Manual enrollment requested", "admin_id", adminID, "user_id", req.UserID, "course_id", req.CourseID)

	business := s.validator.Business()
	if errs := business.ValidateManualEnrollmentSelection(req); len(errs) > 0 {
		return nil, errs
	}

	course, err := s.repo.Course().GetByID(ctx, nil, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	if errs := business.ValidateManualEnrollment(req, course); len(errs) > 0 {
		return nil, errs
	}

	exists, err := s.repo.User().ExistsByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}
	if !exists {
		return nil, ErrStudentNotFound
	}

	enrolled, err := s.repo.Enrollment().Exists(ctx, nil, req.UserID, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrolled {
		metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourceAdmin), "existing").Inc()
		return nil, ErrAlreadyEnrolled
	}

	enrollment := &models.Enrollment{
		UserID:   req.UserID,
		CourseID: req.CourseID,
		Source:   models.EnrollmentSourceAdmin,
	}
	if err := s.repo.Enrollment().Create(ctx, nil, enrollment); err != nil {
		// The unique index still wins a race with a concurrent write
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourceAdmin), "existing").Inc()
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourceAdmin), "created").Inc()
	s.publishCreated(ctx, enrollment)
	s.logger.Info("Manual enrollment created", "enrollment_id", enrollment.ID, "admin_id", adminID,
		"payment_received", req.PaymentReceived)

	return enrollment, nil
}

// EnrollFree lets a signed-in user take a zero-price published course
func (s *enrollmentService) EnrollFree(ctx context.Context, courseSlug, userID string) (*models.Enrollment, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	course, err := s.repo.Course().GetBySlug(ctx, nil, courseSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if !course.IsPublished {
		return nil, ErrCourseNotPublished
	}
	if !course.IsFree() {
		return nil, NewBusinessRuleError("payment_required", "This course requires payment",
			map[string]interface{}{"course_id": course.ID, "price": course.Price})
	}

	enrollment := &models.Enrollment{
		UserID:   userID,
		CourseID: course.ID,
		Source:   models.EnrollmentSourceFree,
	}
	created, err := s.repo.Enrollment().Upsert(ctx, nil, enrollment)
	if err != nil {
		return nil, fmt.Errorf("failed to enroll: %w", err)
	}
	if !created {
		metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourceFree), "existing").Inc()
		return s.repo.Enrollment().GetByUserAndCourse(ctx, nil, userID, course.ID)
	}

	metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourceFree), "created").Inc()
	s.publishCreated(ctx, enrollment)
	return enrollment, nil
}

func (s *enrollmentService) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	return s.repo.Enrollment().Exists(ctx, nil, userID, courseID)
}

func (s *enrollmentService) ListMine(ctx context.Context, userID string) ([]*models.Enrollment, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.Enrollment().ListByUser(ctx, nil, userID)
}

// List returns enrollments with the student's display name attached
func (s *enrollmentService) List(ctx context.Context, filters repositories.EnrollmentFilters) (*EnrollmentListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 50
	}

	enrollments, total, err := s.repo.Enrollment().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	return &EnrollmentListResponse{
		Enrollments: s.withStudents(ctx, enrollments),
		Total:       total,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}, nil
}

// Export writes every matching enrollment to an xlsx workbook
func (s *enrollmentService) Export(ctx context.Context, filters repositories.EnrollmentFilters) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to prepare workbook: %w", err)
	}

	header := []interface{}{"Student", "Email", "Course", "Source", "Order ID", "Enrolled At", "Completed At"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	filters.Limit = exportPageSize
	for filters.Offset = 0; ; filters.Offset += exportPageSize {
		page, total, err := s.repo.Enrollment().List(ctx, nil, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to list enrollments: %w", err)
		}

		for _, e := range s.withStudents(ctx, page) {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			values := []interface{}{
				e.StudentName,
				e.StudentEmail,
				courseTitle(e.Enrollment),
				string(e.Source),
				deref(e.OrderID),
				e.EnrolledAt.Format(time.RFC3339),
				formatTime(e.CompletedAt),
			}
			if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
			row++
		}

		if len(page) < exportPageSize || int64(filters.Offset+len(page)) >= total {
			break
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Enrollments exported", "rows", row-2)
	return buf.Bytes(), nil
}

func (s *enrollmentService) withStudents(ctx context.Context, enrollments []*models.Enrollment) []*EnrollmentSummary {
	ids := make([]string, 0, len(enrollments))
	seen := make(map[string]bool, len(enrollments))
	for _, e := range enrollments {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}

	users := make(map[string]*models.User, len(ids))
	if len(ids) > 0 {
		found, err := s.repo.User().GetByIDs(ctx, ids)
		if err != nil {
			// Names are decoration; the listing still works without them
			s.logger.Warn("Failed to resolve student names", "error", err)
		}
		for _, u := range found {
			users[u.ID] = u
		}
	}

	result := make([]*EnrollmentSummary, 0, len(enrollments))
	for _, e := range enrollments {
		summary := &EnrollmentSummary{Enrollment: e}
		if u, ok := users[e.UserID]; ok {
			summary.StudentName = u.FullName
			summary.StudentEmail = u.Email
		}
		result = append(result, summary)
	}
	return result
}

func (s *enrollmentService) publishCreated(ctx context.Context, enrollment *models.Enrollment) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventEnrollmentCreated, map[string]string{
		"user_id":   enrollment.UserID,
		"course_id": enrollment.CourseID,
		"source":    string(enrollment.Source),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish enrollment event", "enrollment_id", enrollment.ID, "error", err)
	}
}

func courseTitle(e *models.Enrollment) string {
	if e.Course == nil {
		return e.CourseID
	}
	return e.Course.Title
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
