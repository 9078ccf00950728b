package payment

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestExpiryWorker_ExpiresStalePayments(t *testing.T) {
	service, payments, outbox := newServiceForTest(t)

	first, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	second, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Второй платёж успевает завершиться до обхода.
	if err := service.HandleSessionCompleted(second.SessionID); err != nil {
		t.Fatalf("session completed: %v", err)
	}
	if err := service.HandlePaymentSucceeded(second.SessionID, "ch_1"); err != nil {
		t.Fatalf("payment succeeded: %v", err)
	}
	drainOutbox(t, outbox)

	worker := NewExpiryWorker(service, payments, WithSessionTTL(time.Nanosecond), WithExpiryBatchSize(10))
	time.Sleep(5 * time.Millisecond)

	if expired := worker.ProcessOnce(context.Background()); expired != 1 {
		t.Fatalf("expected 1 expired payment, got %d", expired)
	}

	payment, _ := payments.Get(first.PaymentID)
	if payment.Status != domain.PaymentStatusFailed || payment.FailReason != ExpiryReason {
		t.Fatalf("expected failed/%q, got %s/%q", ExpiryReason, payment.Status, payment.FailReason)
	}

	completed, _ := payments.Get(second.PaymentID)
	if completed.Status != domain.PaymentStatusCompleted {
		t.Fatalf("completed payment must not expire, got %s", completed.Status)
	}

	pending, _ := outbox.PullPending(10)
	if len(pending) != 1 || pending[0].EventType != domain.EventTypePaymentFailed {
		t.Fatalf("expected single payment.failed, got %d events", len(pending))
	}

	// Повторный обход — платёж уже терминальный, новых событий нет.
	markAllSent(t, outbox, pending)
	if expired := worker.ProcessOnce(context.Background()); expired != 0 {
		t.Fatalf("second sweep must be a no-op, got %d", expired)
	}
}

func TestExpiryWorker_FreshPaymentsUntouched(t *testing.T) {
	service, payments, _ := newServiceForTest(t)

	result, err := service.Initiate(cardCheckoutRequest())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	worker := NewExpiryWorker(service, payments, WithSessionTTL(time.Hour))
	if expired := worker.ProcessOnce(context.Background()); expired != 0 {
		t.Fatalf("fresh payment must not expire, got %d", expired)
	}

	payment, _ := payments.Get(result.PaymentID)
	if payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
}

func TestExpiryWorker_RunStopsOnContextCancel(t *testing.T) {
	service, payments, _ := newServiceForTest(t)
	worker := NewExpiryWorker(service, payments, WithSweepInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
