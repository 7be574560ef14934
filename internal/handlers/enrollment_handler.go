package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type EnrollmentHandler struct {
	BaseHandler
	service services.EnrollmentService
}

func NewEnrollmentHandler(service services.EnrollmentService, logger utils.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// EnrollStudent is the admin override
// @Summary Manually enroll a student
// @Tags admin
// @Accept json
// @Produce json
// @Param enrollment body services.ManualEnrollmentRequest true "Enrollment data"
// @Success 201 {object} models.Enrollment
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already enrolled"
// @Router /admin/enrollments [post]
func (h *EnrollmentHandler) EnrollStudent(c *gin.Context) {
	var req services.ManualEnrollmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	adminID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Manual enrollment", "user_id", req.UserID, "course_id", req.CourseID, "admin_id", adminID)

	enrollment, err := h.service.Enroll(c.Request.Context(), &req, adminID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, enrollment)
}

// EnrollFree enrolls the caller into a free course
// @Summary Enroll into a free course
// @Tags courses
// @Produce json
// @Param slug path string true "Course slug"
// @Success 201 {object} models.Enrollment
// @Router /courses/{slug}/enroll [post]
func (h *EnrollmentHandler) EnrollFree(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	enrollment, err := h.service.EnrollFree(c.Request.Context(), c.Param("slug"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, enrollment)
}

// ListMyEnrollments returns the caller's enrollments
// @Summary List my enrollments
// @Tags me
// @Produce json
// @Success 200 {array} models.Enrollment
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) ListMyEnrollments(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	enrollments, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, enrollments)
}

// GetEnrollmentStatus tells the caller whether they may open a course
// @Summary Check enrollment
// @Tags me
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} map[string]bool
// @Router /me/courses/{id}/enrollment [get]
func (h *EnrollmentHandler) GetEnrollmentStatus(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	enrolled, err := h.service.IsEnrolled(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrolled": enrolled})
}

// ListEnrollments is the back-office ledger view
// @Summary List enrollments
// @Tags admin
// @Produce json
// @Param user_id query string false "Student"
// @Param course_id query string false "Course"
// @Param source query string false "payment, admin or free"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Success 200 {object} services.EnrollmentListResponse
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) ListEnrollments(c *gin.Context) {
	filters, err := h.parseEnrollmentFilters(c)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid filter", err.Error())
		return
	}

	enrollments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, enrollments)
}

// ExportEnrollments streams the filtered ledger as a spreadsheet
// @Summary Export enrollments
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /admin/enrollments/export [get]
func (h *EnrollmentHandler) ExportEnrollments(c *gin.Context) {
	filters, err := h.parseEnrollmentFilters(c)
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid filter", err.Error())
		return
	}

	h.LogRequest(c, "Exporting enrollments")

	data, err := h.service.Export(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("enrollments-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *EnrollmentHandler) parseEnrollmentFilters(c *gin.Context) (repositories.EnrollmentFilters, error) {
	filters := repositories.EnrollmentFilters{
		Limit:  h.parseIntQuery(c, "limit", 50),
		Offset: h.parseIntQuery(c, "offset", 0),
	}

	if userID := c.Query("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if courseID := c.Query("course_id"); courseID != "" {
		filters.CourseID = &courseID
	}
	if raw := c.Query("source"); raw != "" {
		source := models.EnrollmentSource(raw)
		switch source {
		case models.EnrollmentSourcePayment, models.EnrollmentSourceAdmin, models.EnrollmentSourceFree:
			filters.Source = &source
		default:
			return filters, fmt.Errorf("unknown source %q", raw)
		}
	}

	from, err := parseDateQuery(c, "date_from")
	if err != nil {
		return filters, err
	}
	filters.DateFrom = from

	to, err := parseDateQuery(c, "date_to")
	if err != nil {
		return filters, err
	}
	if to != nil {
		// Inclusive of the whole end day
		end := to.AddDate(0, 0, 1)
		filters.DateTo = &end
	}

	return filters, nil
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &value, nil
}
