package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// HTTPHandler — HTTP-фасад платёжного сервиса.
type HTTPHandler struct {
	service *Service
	webhook *WebhookHandler
}

// NewHTTPHandler создаёт HTTP-фасад.
func NewHTTPHandler(service *Service, webhook *WebhookHandler) *HTTPHandler {
	return &HTTPHandler{service: service, webhook: webhook}
}

// Register вешает маршруты платёжного сервиса на router.
func (h *HTTPHandler) Register(router gin.IRouter) {
	api := router.Group("/api/v1")
	api.POST("/checkout", h.Checkout)
	api.GET("/payments/:id", h.GetPayment)

	router.POST("/webhooks/psp", h.webhook.Handle)
}

// Checkout — POST /api/v1/checkout: инициирует оплату и сагу заказа.
func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := h.service.Initiate(req)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate payment"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetPayment — GET /api/v1/payments/:id.
func (h *HTTPHandler) GetPayment(c *gin.Context) {
	payment, err := h.service.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":   payment.ID,
		"order_id":     payment.OrderID,
		"status":       payment.Status,
		"method":       payment.Method,
		"amount_minor": payment.AmountMinor,
		"currency":     payment.Currency,
		"session_id":   payment.SessionID,
		"fail_reason":  payment.FailReason,
	})
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrCurrencyRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemSKURequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrAmountNegative),
		errors.Is(err, domain.ErrPaymentAmountNegative),
		errors.Is(err, domain.ErrPaymentMethodInvalid):
		return true
	default:
		return false
	}
}
