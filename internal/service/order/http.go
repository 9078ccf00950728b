package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const defaultListLimit = 50

// HTTPHandler — HTTP-фасад заказного сервиса.
type HTTPHandler struct {
	service *Service
}

// NewHTTPHandler создаёт HTTP-фасад.
func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register вешает маршруты заказного сервиса на router.
func (h *HTTPHandler) Register(router gin.IRouter) {
	api := router.Group("/api/v1")
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/orders/:id/timeline", h.GetTimeline)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.POST("/orders/:id/complete", h.CompleteOrder)
	api.GET("/customers/:id/orders", h.ListCustomerOrders)
}

// GetOrder — GET /api/v1/orders/:id.
func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.service.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

// GetTimeline — GET /api/v1/orders/:id/timeline.
func (h *HTTPHandler) GetTimeline(c *gin.Context) {
	events, err := h.service.Timeline(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]gin.H, 0, len(events))
	for _, event := range events {
		items = append(items, gin.H{
			"type":     event.Type,
			"reason":   event.Reason,
			"occurred": event.Occurred,
		})
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "events": items})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder — POST /api/v1/orders/:id/cancel.
func (h *HTTPHandler) CancelOrder(c *gin.Context) {
	// Тело необязательно: отмена без причины допустима.
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "canceled by customer"
	}

	order, err := h.service.Cancel(c.Param("id"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

// CompleteOrder — POST /api/v1/orders/:id/complete.
func (h *HTTPHandler) CompleteOrder(c *gin.Context) {
	order, err := h.service.Complete(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

// ListCustomerOrders — GET /api/v1/customers/:id/orders?limit=N.
func (h *HTTPHandler) ListCustomerOrders(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	orders, err := h.service.ListByCustomer(c.Param("id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]gin.H, 0, len(orders))
	for _, order := range orders {
		items = append(items, orderResponse(order))
	}
	c.JSON(http.StatusOK, gin.H{"orders": items})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, domain.ErrCancelNotAllowed), errors.Is(err, domain.ErrCompleteNotAllowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.IsVersionConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": "order was modified concurrently, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func orderResponse(order domain.Order) gin.H {
	items := make([]gin.H, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, gin.H{
			"sku":         item.SKU,
			"qty":         item.Qty,
			"price_minor": item.PriceMinor,
		})
	}

	return gin.H{
		"order_id":      order.ID,
		"number":        order.Number,
		"customer_id":   order.CustomerID,
		"status":        order.Status,
		"payment_state": order.PaymentState,
		"currency":      order.Currency,
		"amount_minor":  order.AmountMinor,
		"items":         items,
		"cancel_reason": order.CancelReason,
		"created_at":    order.CreatedAt,
	}
}
