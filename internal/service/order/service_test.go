package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func createTestOrder(t *testing.T, service *Service, orderID string) {
	t.Helper()

	if err := service.Handler()(context.Background(), paymentInitiatedEnvelope(t, orderID)); err != nil {
		t.Fatalf("create order: %v", err)
	}
}

func TestService_Cancel(t *testing.T) {
	service, orders, outbox := newServiceForTest(t)
	createTestOrder(t, service, "order-1")
	drainOutbox(t, outbox)

	canceled, err := service.Cancel("order-1", "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled || canceled.CancelReason != "changed my mind" {
		t.Fatalf("expected canceled, got %s/%q", canceled.Status, canceled.CancelReason)
	}

	pending, _ := outbox.PullPending(10)
	types := eventTypes(pending)
	if len(types) != 3 || types[0] != domain.EventTypeOrderCanceled {
		t.Fatalf("expected canceled + releases, got %v", types)
	}

	// Повторная отмена — no-op без новых событий.
	drainOutbox(t, outbox)
	if _, err := service.Cancel("order-1", "again"); err != nil {
		t.Fatalf("duplicate cancel: %v", err)
	}
	pending, _ = outbox.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("duplicate cancel must not enqueue events, got %d", len(pending))
	}

	order, _ := orders.Get("order-1")
	if order.CancelReason != "changed my mind" {
		t.Fatalf("duplicate cancel must not overwrite reason, got %q", order.CancelReason)
	}
}

func TestService_CancelShippedNotAllowed(t *testing.T) {
	service, orders, _ := newServiceForTest(t)
	createTestOrder(t, service, "order-1")

	order, _ := orders.Get("order-1")
	order.Status = domain.OrderStatusShipped
	if err := orders.Save(order, nil); err != nil {
		t.Fatalf("save shipped order: %v", err)
	}

	if _, err := service.Cancel("order-1", "too late"); !errors.Is(err, domain.ErrCancelNotAllowed) {
		t.Fatalf("expected ErrCancelNotAllowed, got %v", err)
	}
}

func TestService_Complete(t *testing.T) {
	service, _, outbox := newServiceForTest(t)
	createTestOrder(t, service, "order-1")

	// Завершение до подтверждения оплаты запрещено.
	if _, err := service.Complete("order-1"); !errors.Is(err, domain.ErrCompleteNotAllowed) {
		t.Fatalf("expected ErrCompleteNotAllowed, got %v", err)
	}

	completed := envelopeFor(t, domain.EventTypePaymentCompleted, domain.PaymentCompleted{
		PaymentID: "payment-1",
		OrderID:   "order-1",
	})
	if err := service.Handler()(context.Background(), completed); err != nil {
		t.Fatalf("payment.completed: %v", err)
	}
	drainOutbox(t, outbox)

	order, err := service.Complete("order-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", order.Status)
	}

	pending, _ := outbox.PullPending(10)
	if len(pending) != 1 || pending[0].EventType != domain.EventTypeOrderCompleted {
		t.Fatalf("expected single order.completed, got %v", eventTypes(pending))
	}

	// Повторное завершение — no-op.
	drainOutbox(t, outbox)
	if _, err := service.Complete("order-1"); err != nil {
		t.Fatalf("duplicate complete: %v", err)
	}
	pending, _ = outbox.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("duplicate complete must not enqueue events, got %d", len(pending))
	}
}

func TestService_ListByCustomer(t *testing.T) {
	service, _, _ := newServiceForTest(t)
	createTestOrder(t, service, "order-1")
	createTestOrder(t, service, "order-2")

	orders, err := service.ListByCustomer("customer-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}

	orders, err = service.ListByCustomer("customer-other", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders for other customer, got %d", len(orders))
	}
}

func TestHTTPHandler_OrderEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	service, _, _ := newServiceForTest(t)
	createTestOrder(t, service, "order-1")

	router := gin.New()
	NewHTTPHandler(service).Register(router)

	get := func(path string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(recorder, req)
		return recorder
	}

	if resp := get("/api/v1/orders/order-1"); resp.Code != http.StatusOK {
		t.Fatalf("get order: expected 200, got %d", resp.Code)
	}
	if resp := get("/api/v1/orders/order-missing"); resp.Code != http.StatusNotFound {
		t.Fatalf("missing order: expected 404, got %d", resp.Code)
	}
	if resp := get("/api/v1/orders/order-1/timeline"); resp.Code != http.StatusOK {
		t.Fatalf("timeline: expected 200, got %d", resp.Code)
	}
	if resp := get("/api/v1/customers/customer-1/orders?limit=bogus"); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", resp.Code)
	}

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/order-1/cancel", nil)
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode cancel response: %v", err)
	}
	if body["status"] != string(domain.OrderStatusCanceled) {
		t.Fatalf("expected canceled, got %v", body["status"])
	}
	if body["cancel_reason"] != "canceled by customer" {
		t.Fatalf("expected default reason, got %v", body["cancel_reason"])
	}

	// Завершить отменённый заказ нельзя.
	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/order-1/complete", nil)
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("complete canceled: expected 409, got %d", recorder.Code)
	}
}
