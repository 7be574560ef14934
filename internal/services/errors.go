package services

import (
	"errors"
	"fmt"

	"github.com/ccpq/academy-service/internal/paypal"
	"github.com/ccpq/academy-service/internal/validator"
)

// ValidationErrors is returned for user-input failures, before any external call
type ValidationErrors = validator.ValidationErrors

var (
	// Catalog
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotPublished = errors.New("course is not available for purchase")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrQuizNotFound       = errors.New("quiz not found")

	// Payments
	ErrPriceMismatch       = errors.New("amount does not match the current course price")
	ErrOrderNotFound       = errors.New("order not found")
	ErrCaptureFailed       = errors.New("failed to capture payment")
	ErrProviderUnavailable = paypal.ErrProviderUnavailable
	ErrIdempotencyConflict = errors.New("idempotency key was used for a different course")
	ErrIdempotencyKeyUsed  = errors.New("idempotency key belongs to an order that was already captured or expired")

	// Enrollment ledger
	ErrAlreadyEnrolled = errors.New("This student is already enrolled in this course")
	ErrNotEnrolled     = errors.New("enrollment required")
	ErrStudentNotFound = errors.New("student not found")

	// Reconciliation
	ErrTaskNotFound = errors.New("reconciliation task not found")

	// Generic
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// BusinessRuleError reports a request that is well-formed but not allowed
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// PermissionError reports a denied action on a resource
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
