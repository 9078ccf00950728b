package payment

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const testWebhookSecret = "test-secret"

func newWebhookServerForTest(t *testing.T) (*Service, domain.PaymentRepository, *WebhookHandler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service, payments, _ := newServiceForTest(t)
	webhook := NewWebhookHandler(service, testWebhookSecret, nil)

	router := gin.New()
	NewHTTPHandler(service, webhook).Register(router)

	return service, payments, webhook, router
}

func postWebhook(t *testing.T, router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/psp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestWebhook_InvalidSignature(t *testing.T) {
	service, payments, webhook, router := newWebhookServerForTest(t)

	result, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	body := []byte(fmt.Sprintf(`{"type":%q,"session_id":%q}`, webhookSessionCompleted, result.SessionID))

	// Без подписи и с чужой подписью — 400, состояние не меняется.
	if resp := postWebhook(t, router, body, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", resp.Code)
	}
	if resp := postWebhook(t, router, body, webhook.Sign([]byte("other body"))); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with wrong signature, got %d", resp.Code)
	}

	payment, _ := payments.Get(result.PaymentID)
	if payment.Status != domain.PaymentStatusPending {
		t.Fatalf("unsigned webhook must not change state, got %s", payment.Status)
	}
}

func TestWebhook_FullCardFlow(t *testing.T) {
	service, payments, webhook, router := newWebhookServerForTest(t)

	result, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	completed := []byte(fmt.Sprintf(`{"type":%q,"session_id":%q}`, webhookSessionCompleted, result.SessionID))
	if resp := postWebhook(t, router, completed, webhook.Sign(completed)); resp.Code != http.StatusOK {
		t.Fatalf("session.completed: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	succeeded := []byte(fmt.Sprintf(`{"type":%q,"session_id":%q,"charge_id":"ch_42"}`, webhookPaymentSucceeded, result.SessionID))
	if resp := postWebhook(t, router, succeeded, webhook.Sign(succeeded)); resp.Code != http.StatusOK {
		t.Fatalf("payment.succeeded: expected 200, got %d", resp.Code)
	}

	payment, _ := payments.Get(result.PaymentID)
	if payment.Status != domain.PaymentStatusCompleted || payment.ChargeID != "ch_42" {
		t.Fatalf("expected completed/ch_42, got %s/%s", payment.Status, payment.ChargeID)
	}

	// Повторная доставка того же webhook идемпотентна.
	if resp := postWebhook(t, router, succeeded, webhook.Sign(succeeded)); resp.Code != http.StatusOK {
		t.Fatalf("duplicate delivery: expected 200, got %d", resp.Code)
	}
}

func TestWebhook_UnknownSession(t *testing.T) {
	_, _, webhook, router := newWebhookServerForTest(t)

	body := []byte(fmt.Sprintf(`{"type":%q,"session_id":"cs_missing"}`, webhookPaymentSucceeded))
	if resp := postWebhook(t, router, body, webhook.Sign(body)); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.Code)
	}
}

func TestWebhook_UnknownTypeAndMalformed(t *testing.T) {
	service, _, webhook, router := newWebhookServerForTest(t)

	result, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	unknown := []byte(fmt.Sprintf(`{"type":"invoice.created","session_id":%q}`, result.SessionID))
	if resp := postWebhook(t, router, unknown, webhook.Sign(unknown)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", resp.Code)
	}

	malformed := []byte(`{"type":`)
	if resp := postWebhook(t, router, malformed, webhook.Sign(malformed)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}

	noSession := []byte(fmt.Sprintf(`{"type":%q}`, webhookPaymentSucceeded))
	if resp := postWebhook(t, router, noSession, webhook.Sign(noSession)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session_id, got %d", resp.Code)
	}
}

func TestWebhook_FailedAfterCompletedConflicts(t *testing.T) {
	service, payments, webhook, router := newWebhookServerForTest(t)

	result, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := service.HandleSessionCompleted(result.SessionID); err != nil {
		t.Fatalf("session completed: %v", err)
	}
	if err := service.HandlePaymentSucceeded(result.SessionID, "ch_1"); err != nil {
		t.Fatalf("payment succeeded: %v", err)
	}

	failed := []byte(fmt.Sprintf(`{"type":%q,"session_id":%q,"reason":"card declined"}`, webhookPaymentFailed, result.SessionID))
	if resp := postWebhook(t, router, failed, webhook.Sign(failed)); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for failed-after-completed, got %d", resp.Code)
	}

	payment, _ := payments.Get(result.PaymentID)
	if payment.Status != domain.PaymentStatusCompleted {
		t.Fatalf("terminal status must not change, got %s", payment.Status)
	}
}
