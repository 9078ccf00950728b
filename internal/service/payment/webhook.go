package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// SignatureHeader — заголовок с HMAC-подписью тела webhook.
const SignatureHeader = "X-Shop-Signature"

// Типы событий платёжного провайдера.
const (
	webhookSessionCompleted = "checkout.session.completed"
	webhookPaymentSucceeded = "payment.succeeded"
	webhookPaymentFailed    = "payment.failed"
)

// webhookEvent — тело webhook провайдера.
type webhookEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ChargeID  string `json:"charge_id"`
	Reason    string `json:"reason"`
}

// WebhookHandler проверяет подпись провайдера и применяет события
// к платёжному автомату. Webhook доставляется at-least-once, поэтому
// все переходы идемпотентны на уровне домена.
type WebhookHandler struct {
	service *Service
	secret  []byte
	metrics *metrics.SagaMetrics
	logger  *log.Entry
}

// NewWebhookHandler создаёт обработчик webhook с общим секретом провайдера.
func NewWebhookHandler(service *Service, secret string, sagaMetrics *metrics.SagaMetrics) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		secret:  []byte(secret),
		metrics: sagaMetrics,
		logger:  log.WithField("component", "payment-webhook"),
	}
}

// VerifySignature сверяет hex(HMAC-SHA256(secret, body)) с подписью из
// заголовка. Сравнение константное по времени.
func (h *WebhookHandler) VerifySignature(body []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign возвращает подпись тела — используется в тестах и утилитах.
func (h *WebhookHandler) Sign(body []byte) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Handle — gin-обработчик POST /webhooks/psp.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if !h.VerifySignature(body, c.GetHeader(SignatureHeader)) {
		h.recordWebhook("invalid_signature")
		h.logger.Warn("webhook rejected: invalid signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.recordWebhook("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if event.SessionID == "" {
		h.recordWebhook("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	if err := h.apply(event); err != nil {
		status, result := webhookErrorStatus(err)
		h.recordWebhook(result)
		h.logger.WithFields(log.Fields{
			"type":       event.Type,
			"session_id": event.SessionID,
		}).WithError(err).Warn("webhook not applied")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.recordWebhook("ok")
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *WebhookHandler) apply(event webhookEvent) error {
	switch event.Type {
	case webhookSessionCompleted:
		return h.service.HandleSessionCompleted(event.SessionID)
	case webhookPaymentSucceeded:
		return h.service.HandlePaymentSucceeded(event.SessionID, event.ChargeID)
	case webhookPaymentFailed:
		reason := event.Reason
		if reason == "" {
			reason = "payment declined"
		}
		return h.service.HandlePaymentFailed(event.SessionID, reason)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownEventType, event.Type)
	}
}

func webhookErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, "unknown_session"
	case errors.Is(err, domain.ErrUnknownEventType):
		return http.StatusBadRequest, "unknown_type"
	case domain.IsTerminalState(err), errors.Is(err, domain.ErrPaymentNotProcessing):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (h *WebhookHandler) recordWebhook(result string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(result)
	}
}
