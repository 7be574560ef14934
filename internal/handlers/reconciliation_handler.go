package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

type ReconciliationHandler struct {
	BaseHandler
	service services.ReconciliationService
}

func NewReconciliationHandler(service services.ReconciliationService, logger utils.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ListTasks returns reconciliation tasks, optionally by status
// @Summary List reconciliation tasks
// @Tags admin
// @Produce json
// @Param status query string false "pending, resolved or abandoned"
// @Success 200 {object} services.ReconciliationListResponse
// @Router /admin/reconciliation [get]
func (h *ReconciliationHandler) ListTasks(c *gin.Context) {
	filters := repositories.ReconciliationFilters{
		Limit:  h.parseIntQuery(c, "limit", 50),
		Offset: h.parseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ReconciliationStatus(raw)
		switch status {
		case models.ReconciliationPending, models.ReconciliationResolved, models.ReconciliationAbandoned:
			filters.Status = &status
		default:
			h.RespondWithError(c, http.StatusBadRequest, "Invalid filter", "unknown status "+raw)
			return
		}
	}

	tasks, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// RetryTask runs one task now, reopening it if abandoned
// @Summary Retry reconciliation task
// @Tags admin
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.ReconciliationTask
// @Failure 404 {object} ErrorResponse
// @Router /admin/reconciliation/{id}/retry [post]
func (h *ReconciliationHandler) RetryTask(c *gin.Context) {
	taskID := c.Param("id")
	h.LogRequest(c, "Retrying reconciliation task", "task_id", taskID)

	task, err := h.service.Retry(c.Request.Context(), taskID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// RunNow triggers a sweep outside the schedule
// @Summary Run reconciliation now
// @Tags admin
// @Produce json
// @Success 200 {object} services.ReconciliationRunResult
// @Router /admin/reconciliation/run [post]
func (h *ReconciliationHandler) RunNow(c *gin.Context) {
	h.LogRequest(c, "Running reconciliation on demand")

	result, err := h.service.RunDue(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
