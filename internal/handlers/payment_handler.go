package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

// IdempotencyKeyHeader lets a client retry checkout without creating a second order
const IdempotencyKeyHeader = "Idempotency-Key"

type PaymentHandler struct {
	BaseHandler
	service services.PaymentService
}

func NewPaymentHandler(service services.PaymentService, logger utils.Logger) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CreateOrder starts a checkout for one course
// @Summary Create payment order
// @Tags payments
// @Accept json
// @Produce json
// @Param order body services.CreateOrderRequest true "Order data"
// @Param Idempotency-Key header string false "Client retry key"
// @Success 200 {object} services.CreateOrderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /payments/orders [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating payment order", "course_id", req.CourseID)

	order, err := h.service.CreateOrder(c.Request.Context(), &req, optionalUserID(c), c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// CaptureOrder captures an approved order and enrolls the buyer
// @Summary Capture payment order
// @Tags payments
// @Accept json
// @Produce json
// @Param capture body services.CaptureOrderRequest true "Capture data"
// @Success 200 {object} services.CaptureOrderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /payments/capture [post]
func (h *PaymentHandler) CaptureOrder(c *gin.Context) {
	var req services.CaptureOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Capturing payment order", "order_id", req.OrderID)

	result, err := h.service.CaptureOrder(c.Request.Context(), &req, optionalUserID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrder returns the pending order so the success page renders from any browser
// @Summary Get pending order
// @Tags payments
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} services.OrderView
// @Failure 404 {object} ErrorResponse
// @Router /payments/orders/{id} [get]
func (h *PaymentHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ClaimOrder enrolls the signed-in user into an order captured anonymously
// @Summary Claim captured order
// @Tags payments
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} services.CaptureOrderResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /me/orders/{id}/claim [post]
func (h *PaymentHandler) ClaimOrder(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	orderID := c.Param("id")
	h.LogRequest(c, "Claiming order", "order_id", orderID, "user_id", userID)

	result, err := h.service.ClaimOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreatePaymentLink creates a provider order for an admin to share
// @Summary Create payment link
// @Tags admin
// @Accept json
// @Produce json
// @Param link body services.PaymentLinkRequest true "Link data"
// @Success 201 {object} services.CreateOrderResponse
// @Router /admin/enrollments/payment-link [post]
func (h *PaymentHandler) CreatePaymentLink(c *gin.Context) {
	var req services.PaymentLinkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating payment link", "course_id", req.CourseID)

	link, err := h.service.CreatePaymentLink(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}
