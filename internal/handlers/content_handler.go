package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
	"github.com/ccpq/academy-service/internal/validator"
)

type ContentHandler struct {
	BaseHandler
	service services.ContentService
}

func NewContentHandler(service services.ContentService, logger utils.Logger) *ContentHandler {
	return &ContentHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// GenerateCourseContent fills thin copy for one course
// @Summary Generate course content
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param options body validator.GenerateContentRequest false "Options"
// @Success 200 {object} services.GeneratedCourseContent
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse "Generator not configured"
// @Router /admin/courses/{id}/generate-content [post]
func (h *ContentHandler) GenerateCourseContent(c *gin.Context) {
	var req validator.GenerateContentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	courseID := c.Param("id")
	h.LogRequest(c, "Generating course content", "course_id", courseID, "dry_run", req.DryRun)

	result, err := h.service.GenerateForCourse(c.Request.Context(), courseID, req.DryRun)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GenerateBulkContent runs the batch generator over courses missing copy
// @Summary Bulk generate course content
// @Tags admin
// @Accept json
// @Produce json
// @Param options body validator.BulkGenerateRequest false "Limit (default 50, max 100)"
// @Success 200 {object} services.BulkGenerateResult
// @Router /admin/content/generate-bulk [post]
func (h *ContentHandler) GenerateBulkContent(c *gin.Context) {
	var req validator.BulkGenerateRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	if req.Limit < 0 {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", "limit must not be negative")
		return
	}

	h.LogRequest(c, "Bulk generating course content", "limit", req.Limit)

	result, err := h.service.GenerateBulk(c.Request.Context(), req.Limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// bindOptionalJSON accepts an empty body
func (h *ContentHandler) bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}
