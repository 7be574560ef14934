package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/config"
	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/metrics"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/paypal"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/validator"
)

type paymentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	gateway   PaymentGateway
	publisher events.EventPublisher
	orderTTL  time.Duration
	now       func() time.Time
}

func NewPaymentService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	gateway PaymentGateway,
	publisher events.EventPublisher,
	orderTTL time.Duration,
) PaymentService {
	if orderTTL <= 0 {
		orderTTL = 3 * time.Hour
	}
	return &paymentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		gateway:   gateway,
		publisher: publisher,
		orderTTL:  orderTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ===== ORDER CREATION =====

func (s *paymentService) CreateOrder(ctx context.Context, req *CreateOrderRequest, userID, idempotencyKey string) (*CreateOrderResponse, error) {
	s.logger.Info("Creating payment order", "course_id", req.CourseID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		metrics.OrdersCreated.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.repo.Payment().GetPendingOrderByIdempotencyKey(ctx, nil, idempotencyKey)
		switch {
		case err == nil:
			if existing.CourseID != req.CourseID {
				metrics.OrdersCreated.WithLabelValues("rejected").Inc()
				return nil, ErrIdempotencyConflict
			}
			if existing.Status != models.PendingOrderCreated || existing.IsExpired(s.now()) {
				metrics.OrdersCreated.WithLabelValues("rejected").Inc()
				return nil, ErrIdempotencyKeyUsed
			}
			metrics.OrdersCreated.WithLabelValues("reused").Inc()
			return &CreateOrderResponse{
				OrderID:     existing.OrderID,
				ApprovalURL: existing.ApprovalURL,
				Status:      paypal.StatusCreated,
			}, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	course, err := s.getCourse(ctx, req.CourseID)
	if err != nil {
		metrics.OrdersCreated.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if !course.IsPublished {
		metrics.OrdersCreated.WithLabelValues("rejected").Inc()
		return nil, ErrCourseNotPublished
	}

	// The catalog price is what gets charged; a client amount is only checked
	if req.Amount != nil && models.ToCents(*req.Amount) != course.PriceCents() {
		metrics.OrdersCreated.WithLabelValues("rejected").Inc()
		s.logger.Warn("Order amount does not match course price",
			"course_id", course.ID, "amount", *req.Amount, "price", course.Price)
		return nil, ErrPriceMismatch
	}

	return s.startCheckout(ctx, course, userID, req.ReturnURL, req.CancelURL, idempotencyKey)
}

// CreatePaymentLink creates an order an admin can forward to a student.
// Completion is acknowledged later through manual enrollment.
func (s *paymentService) CreatePaymentLink(ctx context.Context, req *PaymentLinkRequest) (*CreateOrderResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	course, err := s.getCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	return s.startCheckout(ctx, course, req.UserID, req.ReturnURL, req.CancelURL, "")
}

func (s *paymentService) startCheckout(ctx context.Context, course *models.Course, userID, returnURL, cancelURL, idempotencyKey string) (*CreateOrderResponse, error) {
	if course.IsFree() {
		metrics.OrdersCreated.WithLabelValues("rejected").Inc()
		return nil, NewBusinessRuleError("free_course", "This course is free and does not require payment",
			map[string]interface{}{"course_id": course.ID})
	}

	requestID := idempotencyKey
	if requestID == "" {
		requestID = uuid.NewString()
	}

	order, err := s.gateway.CreateOrder(ctx, paypal.OrderParams{
		CourseID:    course.ID,
		Description: course.Title,
		AmountCents: course.PriceCents(),
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
		RequestID:   requestID,
	})
	if err != nil {
		metrics.OrdersCreated.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	pending := &models.PendingOrder{
		OrderID:     order.ID,
		CourseID:    course.ID,
		CourseSlug:  course.Slug,
		UserID:      optional(userID),
		Amount:      course.Price,
		Currency:    models.CurrencyZAR,
		Status:      models.PendingOrderCreated,
		ApprovalURL: order.ApprovalURL(),
		ExpiresAt:   s.now().Add(s.orderTTL),
	}
	if idempotencyKey != "" {
		pending.IdempotencyKey = &idempotencyKey
	}

	// Capture falls back to the order's reference_id, so a lost pending row is not fatal
	if err := s.repo.Payment().CreatePendingOrder(ctx, nil, pending); err != nil {
		s.logger.Error("Failed to store pending order", "order_id", order.ID, "error", err)
	}

	metrics.OrdersCreated.WithLabelValues("created").Inc()
	s.logger.Info("Payment order created", "order_id", order.ID, "course_id", course.ID)

	return &CreateOrderResponse{
		OrderID:     order.ID,
		ApprovalURL: pending.ApprovalURL,
		Status:      order.Status,
	}, nil
}

// ===== CAPTURE =====

func (s *paymentService) CaptureOrder(ctx context.Context, req *CaptureOrderRequest, authUserID string) (*CaptureOrderResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	s.logger.Info("Capturing payment order", "order_id", req.OrderID)

	pending := s.findPendingOrder(ctx, req.OrderID)

	capture, err := s.repo.Payment().GetCapture(ctx, nil, req.OrderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load capture: %w", err)
	}

	if capture == nil || !capture.IsCompleted() {
		capture, err = s.captureWithProvider(ctx, req.OrderID, pending)
		if err != nil {
			return nil, err
		}

		userID := firstNonEmpty(authUserID, req.UserID, deref(pending.userID()))
		if capture.IsCompleted() && userID != "" {
			if err := s.bindCapture(ctx, capture, userID); err != nil {
				var permErr *PermissionError
				if errors.As(err, &permErr) {
					return nil, err
				}
				// The money is taken; the ledger write below still records the buyer
				s.logger.Warn("Failed to bind capture user", "order_id", req.OrderID, "error", err)
			}
		}
		return s.settle(ctx, capture, pending, userID), nil
	}

	s.logger.Info("Reusing completed capture", "order_id", req.OrderID)
	userID, err := s.resolveReplayOwner(ctx, capture, pending, authUserID, req.UserID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, capture, pending, userID), nil
}

// resolveReplayOwner decides who a capture that already completed belongs to.
// A bound capture only ever serves its owner. An unbound one goes to the user
// named at checkout, else to an authenticated caller whose email matches the
// payer. An unauthenticated body userId never binds a replayed capture.
func (s *paymentService) resolveReplayOwner(ctx context.Context, capture *models.PaymentCapture, pending *pendingRef, authUserID, bodyUserID string) (string, error) {
	if capture.UserID != nil {
		owner := *capture.UserID
		if requested := firstNonEmpty(authUserID, bodyUserID); requested != "" && requested != owner {
			return "", s.ownedElsewhere(capture.OrderID, requested)
		}
		return owner, nil
	}

	if checkoutUser := deref(pending.userID()); checkoutUser != "" {
		if requested := firstNonEmpty(authUserID, bodyUserID); requested != "" && requested != checkoutUser {
			return "", s.ownedElsewhere(capture.OrderID, requested)
		}
		return checkoutUser, s.bindCapture(ctx, capture, checkoutUser)
	}

	if authUserID == "" {
		if bodyUserID != "" {
			s.logger.Warn("Ignoring unauthenticated user for captured order", "order_id", capture.OrderID)
		}
		return "", nil
	}

	if err := s.checkPayer(ctx, capture, authUserID); err != nil {
		return "", err
	}
	return authUserID, s.bindCapture(ctx, capture, authUserID)
}

// bindCapture attaches userID to the capture. The conditional update lets
// exactly one caller win when several race for the same order.
func (s *paymentService) bindCapture(ctx context.Context, capture *models.PaymentCapture, userID string) error {
	if capture.UserID != nil {
		if *capture.UserID != userID {
			return s.ownedElsewhere(capture.OrderID, userID)
		}
		return nil
	}

	err := s.repo.Payment().AssignCaptureUser(ctx, nil, capture.OrderID, userID)
	if err == nil {
		capture.UserID = &userID
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to bind capture: %w", err)
	}

	current, getErr := s.repo.Payment().GetCapture(ctx, nil, capture.OrderID)
	if getErr != nil || current.UserID == nil {
		return fmt.Errorf("failed to bind capture: %w", err)
	}
	if *current.UserID != userID {
		return s.ownedElsewhere(capture.OrderID, userID)
	}
	capture.UserID = current.UserID
	return nil
}

// checkPayer ties a claim on an anonymous capture to the PayPal payer email
func (s *paymentService) checkPayer(ctx context.Context, capture *models.PaymentCapture, userID string) error {
	if capture.PayerEmail == "" {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load claiming user: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(user.Email), strings.TrimSpace(capture.PayerEmail)) {
		return NewPermissionError(userID, capture.OrderID, "order", "claim", "payer email does not match")
	}
	return nil
}

func (s *paymentService) ownedElsewhere(orderID, userID string) error {
	s.logger.Warn("Rejected enrollment for an order owned by another user", "order_id", orderID, "user_id", userID)
	return NewPermissionError(userID, orderID, "order", "claim", "order belongs to another user")
}

func (s *paymentService) captureWithProvider(ctx context.Context, orderID string, pending *pendingRef) (*models.PaymentCapture, error) {
	order, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		metrics.Captures.WithLabelValues("error").Inc()
		s.logger.Error("PayPal capture error", "order_id", orderID, "error", err)

		var cfgErr *config.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			return nil, err
		case errors.Is(err, paypal.ErrProviderUnavailable):
			return nil, fmt.Errorf("failed to capture order: %w", err)
		default:
			return nil, ErrCaptureFailed
		}
	}
	metrics.Captures.WithLabelValues(order.Status).Inc()

	capture := &models.PaymentCapture{
		OrderID:    orderID,
		Status:     order.Status,
		PayerEmail: order.PayerEmail(),
		CourseID:   firstNonEmpty(order.ReferenceID(), pending.courseID()),
		Raw:        datatypes.JSON(order.Raw),
	}
	if unit := order.FirstCapture(); unit != nil {
		capture.CaptureID = unit.ID
		capture.Amount = unit.Amount.Value
		capture.Currency = unit.Amount.CurrencyCode
	}

	if err := s.repo.Payment().SaveCapture(ctx, nil, capture); err != nil {
		s.logger.Error("Failed to store capture", "order_id", orderID, "error", err)
	}

	if capture.IsCompleted() && pending.found() {
		if err := s.repo.Payment().UpdatePendingOrderStatus(ctx, nil, orderID, models.PendingOrderCaptured); err != nil {
			s.logger.Warn("Failed to mark pending order captured", "order_id", orderID, "error", err)
		}
	}

	if capture.IsCompleted() {
		s.publish(ctx, events.EventPaymentCaptured, map[string]string{
			"order_id":  orderID,
			"course_id": capture.CourseID,
		})
	}

	return capture, nil
}

// settle writes the enrollment for a capture. It never fails the request once
// the money is taken; a ledger failure becomes a reconciliation task.
func (s *paymentService) settle(ctx context.Context, capture *models.PaymentCapture, pending *pendingRef, userID string) *CaptureOrderResponse {
	response := &CaptureOrderResponse{
		Status:           capture.Status,
		OrderID:          capture.OrderID,
		PayerEmail:       capture.PayerEmail,
		CourseID:         firstNonEmpty(capture.CourseID, pending.courseID()),
		CourseSlug:       pending.courseSlug(),
		EnrollmentStatus: EnrollmentStatusSkipped,
	}
	if response.CourseSlug == "" && response.CourseID != "" {
		if course, err := s.repo.Course().GetByID(ctx, nil, response.CourseID); err == nil {
			response.CourseSlug = course.Slug
		}
	}

	if !capture.IsCompleted() {
		s.logger.Warn("Capture not completed, enrollment skipped", "order_id", capture.OrderID, "status", capture.Status)
		return response
	}
	if userID == "" || response.CourseID == "" {
		s.logger.Info("Payment captured without a resolvable user", "order_id", capture.OrderID)
		metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourcePayment), "skipped").Inc()
		return response
	}

	orderID := capture.OrderID
	created, err := s.repo.Enrollment().Upsert(ctx, nil, &models.Enrollment{
		UserID:   userID,
		CourseID: response.CourseID,
		Source:   models.EnrollmentSourcePayment,
		OrderID:  &orderID,
	})
	if err != nil {
		s.logger.Error("Enrollment write failed after completed capture",
			"order_id", orderID, "user_id", userID, "course_id", response.CourseID, "error", err)
		s.openReconciliation(ctx, orderID, userID, response.CourseID, err)
		response.EnrollmentStatus = EnrollmentStatusPending
		return response
	}

	if created {
		response.EnrollmentStatus = EnrollmentStatusCreated
		metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourcePayment), "created").Inc()
		s.publish(ctx, events.EventEnrollmentCreated, map[string]string{
			"user_id":   userID,
			"course_id": response.CourseID,
			"order_id":  orderID,
			"source":    string(models.EnrollmentSourcePayment),
		})
	} else {
		response.EnrollmentStatus = EnrollmentStatusExisting
		metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourcePayment), "existing").Inc()
	}

	return response
}

func (s *paymentService) openReconciliation(ctx context.Context, orderID, userID, courseID string, cause error) {
	reason := cause.Error()
	task := &models.ReconciliationTask{
		OrderID:       orderID,
		UserID:        userID,
		CourseID:      courseID,
		Reason:        "enrollment write failed after capture",
		LastError:     &reason,
		Status:        models.ReconciliationPending,
		NextAttemptAt: s.now().Add(time.Minute),
	}
	if err := s.repo.Reconciliation().Create(ctx, nil, task); err != nil {
		s.logger.Error("Failed to record reconciliation task", "order_id", orderID, "error", err)
	}
	metrics.ReconciliationTasks.WithLabelValues("opened").Inc()

	s.publish(ctx, events.EventReconciliationRequired, map[string]string{
		"order_id":  orderID,
		"user_id":   userID,
		"course_id": courseID,
		"reason":    reason,
	})
}

// ===== READ AND CLAIM =====

func (s *paymentService) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	order, err := s.repo.Payment().GetPendingOrder(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	status := order.Status
	if order.IsExpired(s.now()) {
		status = models.PendingOrderExpired
	}

	return &OrderView{
		OrderID:    order.OrderID,
		CourseID:   order.CourseID,
		CourseSlug: order.CourseSlug,
		Status:     status,
		ExpiresAt:  order.ExpiresAt,
	}, nil
}

func (s *paymentService) ClaimOrder(ctx context.Context, orderID, userID string) (*CaptureOrderResponse, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	capture, err := s.repo.Payment().GetCapture(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load capture: %w", err)
	}

	if !capture.IsCompleted() {
		return nil, NewBusinessRuleError("capture_incomplete", "Payment for this order was not completed",
			map[string]interface{}{"order_id": orderID, "status": capture.Status})
	}

	pending := s.findPendingOrder(ctx, orderID)
	owner, err := s.resolveReplayOwner(ctx, capture, pending, userID, "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claiming captured order", "order_id", orderID, "user_id", owner)
	return s.settle(ctx, capture, pending, owner), nil
}

// ===== HELPERS =====

func (s *paymentService) getCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

func (s *paymentService) findPendingOrder(ctx context.Context, orderID string) *pendingRef {
	order, err := s.repo.Payment().GetPendingOrder(ctx, nil, orderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Failed to load pending order", "order_id", orderID, "error", err)
		}
		return &pendingRef{}
	}
	return &pendingRef{order: order}
}

func (s *paymentService) publish(ctx context.Context, eventType events.EventType, data map[string]string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		s.logger.Error("Failed to publish event", "event_type", eventType, "error", err)
	}
}

// pendingRef is a possibly-missing pending order
type pendingRef struct {
	order *models.PendingOrder
}

func (p *pendingRef) found() bool { return p.order != nil }

func (p *pendingRef) courseID() string {
	if p.order == nil {
		return ""
	}
	return p.order.CourseID
}

func (p *pendingRef) courseSlug() string {
	if p.order == nil {
		return ""
	}
	return p.order.CourseSlug
}

func (p *pendingRef) userID() *string {
	if p.order == nil {
		return nil
	}
	return p.order.UserID
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
