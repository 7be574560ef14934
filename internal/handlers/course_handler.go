package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

type CourseHandler struct {
	BaseHandler
	service services.CourseService
}

func NewCourseHandler(service services.CourseService, logger utils.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ListCourses returns the published catalog
// @Summary List courses
// @Tags courses
// @Produce json
// @Param category_id query string false "Category"
// @Param course_type query string false "diploma or short_course"
// @Param q query string false "Title search"
// @Success 200 {object} services.CourseListResponse
// @Router /courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.service.List(c.Request.Context(), h.parseCourseFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, courses)
}

// GetCourse returns one course by slug
// @Summary Get course
// @Tags courses
// @Produce json
// @Param slug path string true "Course slug"
// @Success 200 {object} models.Course
// @Failure 404 {object} ErrorResponse
// @Router /courses/{slug} [get]
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.service.GetBySlug(c.Request.Context(), c.Param("slug"), GetCapabilitiesFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// GetCourseContent returns modules, lessons and quizzes for enrolled users
// @Summary Get course content
// @Tags courses
// @Produce json
// @Param slug path string true "Course slug"
// @Success 200 {object} services.CourseContentResponse
// @Failure 403 {object} ErrorResponse "Enrollment required"
// @Router /courses/{slug}/content [get]
func (h *CourseHandler) GetCourseContent(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	content, err := h.service.GetContent(c.Request.Context(), c.Param("slug"), userID, GetCapabilitiesFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, content)
}

// ListCategories returns every course category
// @Summary List categories
// @Tags courses
// @Produce json
// @Success 200 {array} models.CourseCategory
// @Router /categories [get]
func (h *CourseHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *CourseHandler) parseCourseFilters(c *gin.Context) repositories.CourseFilters {
	filters := repositories.CourseFilters{
		Query:     c.Query("q"),
		Limit:     h.parseIntQuery(c, "limit", 24),
		Offset:    h.parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if categoryID := c.Query("category_id"); categoryID != "" {
		filters.CategoryID = &categoryID
	}
	switch courseType := models.CourseType(c.Query("course_type")); courseType {
	case models.CourseTypeDiploma, models.CourseTypeShortCourse:
		filters.CourseType = &courseType
	}

	return filters
}
