package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

type ProgressHandler struct {
	BaseHandler
	service services.ProgressService
}

func NewProgressHandler(service services.ProgressService, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CompleteLesson marks a lesson complete for the caller
// @Summary Complete lesson
// @Tags progress
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} models.LessonProgress
// @Failure 403 {object} ErrorResponse "Enrollment required"
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id}/complete [post]
func (h *ProgressHandler) CompleteLesson(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.service.MarkLessonComplete(c.Request.Context(), userID, c.Param("id"), GetCapabilitiesFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// SubmitQuizAttempt scores answers server-side and records the attempt
// @Summary Submit quiz attempt
// @Tags progress
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param attempt body services.QuizAttemptRequest true "Answers"
// @Success 201 {object} services.QuizAttemptResponse
// @Router /quizzes/{id}/attempts [post]
func (h *ProgressHandler) SubmitQuizAttempt(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req services.QuizAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.SubmitQuizAttempt(c.Request.Context(), userID, c.Param("id"), &req, GetCapabilitiesFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetCourseProgress returns lesson progress and percentage for a course
// @Summary Course progress
// @Tags progress
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} services.CourseProgressResponse
// @Router /me/courses/{id}/progress [get]
func (h *ProgressHandler) GetCourseProgress(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.service.CourseProgress(c.Request.Context(), userID, c.Param("id"), GetCapabilitiesFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// ListRecentProgress returns the latest completed lessons
// @Summary Recent lesson completions
// @Tags admin
// @Produce json
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {array} models.LessonProgress
// @Router /admin/progress [get]
func (h *ProgressHandler) ListRecentProgress(c *gin.Context) {
	rows, err := h.service.RecentCompletedLessons(c.Request.Context(), h.parseIntQuery(c, "limit", 100))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// ListRecentQuizAttempts returns the latest quiz attempts
// @Summary Recent quiz attempts
// @Tags admin
// @Produce json
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {array} models.QuizAttempt
// @Router /admin/quiz-attempts [get]
func (h *ProgressHandler) ListRecentQuizAttempts(c *gin.Context) {
	rows, err := h.service.RecentQuizAttempts(c.Request.Context(), h.parseIntQuery(c, "limit", 100))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}
