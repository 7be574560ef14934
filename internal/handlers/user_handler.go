package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/utils"
)

// UserHandler backs the student picker of the manual enrollment form
type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

type UserListResponse struct {
	Users []*models.User `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// ListUsers lists or searches the directory
// @Summary List users
// @Tags admin
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param q query string false "Search query (name or email)"
// @Success 200 {object} UserListResponse
// @Failure 502 {object} ErrorResponse "Directory unavailable"
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	filters := h.parseUserFilters(c)
	h.LogRequest(c, "Listing users", "query", filters.Query)

	ctx := c.Request.Context()
	var (
		users []*models.User
		total int64
		err   error
	)
	if filters.Query != "" {
		users, total, err = h.userRepo.Search(ctx, filters.Query, filters)
	} else {
		users, total, err = h.userRepo.List(ctx, filters)
	}
	if err != nil {
		h.LogError(c, err, "Failed to list users")
		h.RespondWithError(c, http.StatusBadGateway, "Failed to list users", nil)
		return
	}

	c.JSON(http.StatusOK, UserListResponse{
		Users: users,
		Total: total,
		Page:  filters.Offset/max(filters.Limit, 1) + 1,
		Size:  filters.Limit,
	})
}

// GetUser retrieves a user by ID
// @Summary Get user by ID
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	h.LogRequest(c, "Getting user", "user_id", userID)

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			h.RespondWithError(c, http.StatusNotFound, "User not found", nil)
			return
		}
		h.LogError(c, err, "Failed to get user")
		h.RespondWithError(c, http.StatusBadGateway, "Failed to get user", nil)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) parseUserFilters(c *gin.Context) repositories.UserFilters {
	page := max(h.parseIntQuery(c, "page", 1), 1)
	size := h.parseIntQuery(c, "size", 10)
	if size < 1 || size > 100 {
		size = 10
	}

	return repositories.UserFilters{
		Limit:  size,
		Offset: (page - 1) * size,
		Query:  c.Query("q"),
	}
}
