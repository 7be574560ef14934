package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/notify"
	"github.com/ccpq/academy-service/internal/repositories"
)

// NotificationService sends purchase receipts. It consumes enrollment events
// from the bus so a slow mail provider never delays a capture response.
type NotificationService struct {
	repo   repositories.Repository
	sender notify.Sender
	logger *slog.Logger
}

func NewNotificationService(repo repositories.Repository, sender notify.Sender, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		sender: sender,
		logger: logger,
	}
}

// Register subscribes the receipt handler; call before bus.Run
func (s *NotificationService) Register(bus *events.Bus) {
	bus.Handle(events.EventEnrollmentCreated, s.HandleEnrollmentCreated)
}

// HandleEnrollmentCreated mails a receipt for paid enrollments. Admin and free
// enrollments are ignored.
func (s *NotificationService) HandleEnrollmentCreated(ctx context.Context, event *events.Event) error {
	if event.Data["source"] != string(models.EnrollmentSourcePayment) {
		return nil
	}

	userID := event.Data["user_id"]
	courseID := event.Data["course_id"]
	if userID == "" || courseID == "" {
		return fmt.Errorf("enrollment event %s is missing user or course", event.ID)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	if user.Email == "" {
		s.logger.Warn("Skipping receipt, user has no email", "user_id", userID)
		return nil
	}

	course, err := s.repo.Course().GetByID(ctx, nil, courseID)
	if err != nil {
		return fmt.Errorf("failed to look up course %s: %w", courseID, err)
	}

	msg := receiptMessage(user, course, event.Data["order_id"])
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	s.logger.Info("Receipt sent", "user_id", userID, "course_id", courseID, "order_id", event.Data["order_id"])
	return nil
}

func receiptMessage(user *models.User, course *models.Course, orderID string) notify.Message {
	name := user.FullName
	if name == "" {
		name = user.Email
	}

	text := fmt.Sprintf("Hi %s,\n\nThank you for your purchase. You are now enrolled in %s.\n\nOrder: %s\nAmount: R%.2f\n\nCCPQ Academy",
		name, course.Title, orderID, course.Price)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Thank you for your purchase. You are now enrolled in <strong>%s</strong>.</p><p>Order: %s<br>Amount: R%.2f</p><p>CCPQ Academy</p>",
		html.EscapeString(name), html.EscapeString(course.Title), html.EscapeString(orderID), course.Price)

	return notify.Message{
		ToName:      user.FullName,
		ToAddress:   user.Email,
		Subject:     fmt.Sprintf("Your enrollment in %s", course.Title),
		TextContent: text,
		HTMLContent: body,
	}
}
