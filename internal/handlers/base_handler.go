package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/config"
	"github.com/ccpq/academy-service/internal/paypal"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

// ErrorResponse is the error envelope of every endpoint
type ErrorResponse struct {
	Message string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Error(msg, append(args, "error", err)...)
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// bindJSON binds the body and answers 400 on malformed payloads
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

// requireUserID answers 401 when no authenticated user is present
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", validationErrors)
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.RespondWithError(c, http.StatusUnprocessableEntity, businessRuleError.Message, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "Access denied", map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	// Configuration problems are surfaced verbatim so operators can fix them
	var configError *config.ConfigError
	if errors.As(err, &configError) {
		h.LogError(c, err, "Configuration error")
		h.RespondWithError(c, http.StatusInternalServerError, configError.Error(), nil)
		return
	}

	// Provider bodies stay in the logs
	var providerError *paypal.ProviderError
	if errors.As(err, &providerError) {
		h.LogError(c, err, "Payment provider error", "operation", providerError.Operation, "status", providerError.StatusCode, "body", providerError.Body)
		if errors.Is(err, services.ErrCaptureFailed) {
			h.RespondWithError(c, http.StatusBadGateway, services.ErrCaptureFailed.Error(), nil)
			return
		}
		h.RespondWithError(c, http.StatusBadGateway, "Payment provider error", nil)
		return
	}

	switch {
	case errors.Is(err, services.ErrCaptureFailed):
		h.LogError(c, err, "Capture failed")
		h.RespondWithError(c, http.StatusBadGateway, services.ErrCaptureFailed.Error(), nil)
	case errors.Is(err, services.ErrProviderUnavailable):
		h.LogError(c, err, "Payment provider unavailable")
		h.RespondWithError(c, http.StatusBadGateway, "Payment provider unavailable", nil)

	case errors.Is(err, services.ErrCourseNotFound), errors.Is(err, services.ErrCourseNotPublished):
		h.RespondWithError(c, http.StatusNotFound, "Course not found", nil)
	case errors.Is(err, services.ErrLessonNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Lesson not found", nil)
	case errors.Is(err, services.ErrQuizNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Quiz not found", nil)
	case errors.Is(err, services.ErrOrderNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Order not found", nil)
	case errors.Is(err, services.ErrStudentNotFound), errors.Is(err, repositories.ErrUserNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Student not found", nil)
	case errors.Is(err, services.ErrTaskNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Reconciliation task not found", nil)

	case errors.Is(err, services.ErrPriceMismatch):
		h.RespondWithError(c, http.StatusConflict, services.ErrPriceMismatch.Error(), nil)
	case errors.Is(err, services.ErrAlreadyEnrolled):
		h.RespondWithError(c, http.StatusConflict, services.ErrAlreadyEnrolled.Error(), nil)
	case errors.Is(err, services.ErrIdempotencyConflict):
		h.RespondWithError(c, http.StatusConflict, services.ErrIdempotencyConflict.Error(), nil)
	case errors.Is(err, services.ErrIdempotencyKeyUsed):
		h.RespondWithError(c, http.StatusConflict, services.ErrIdempotencyKeyUsed.Error(), nil)

	case errors.Is(err, services.ErrNotEnrolled):
		h.RespondWithError(c, http.StatusForbidden, "Enrollment required", nil)
	case errors.Is(err, services.ErrUnauthorized):
		h.RespondWithError(c, http.StatusUnauthorized, "Unauthorized access", nil)
	case errors.Is(err, services.ErrForbidden):
		h.RespondWithError(c, http.StatusForbidden, "Access forbidden", nil)

	default:
		h.LogError(c, err, "Unhandled service error")
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}
