package domain

import (
	"errors"
	"testing"
)

func validCardPayment() Payment {
	return Payment{
		ID:          "payment-1",
		OrderID:     "order-1",
		SagaID:      "saga-1",
		Method:      PaymentMethodCard,
		Status:      PaymentStatusPending,
		AmountMinor: 5000,
		Currency:    "RUB",
		SessionID:   "cs_1",
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := validCardPayment()
	if errs := payment.Validate(); len(errs) != 0 {
		t.Fatalf("valid payment must pass, got %v", errs)
	}

	payment = validCardPayment()
	payment.OrderID = ""
	payment.Method = "crypto"
	errs := payment.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected two validation errors, got %v", errs)
	}
	if !errors.Is(errs[0], ErrOrderIDRequired) || !errors.Is(errs[1], ErrPaymentMethodInvalid) {
		t.Fatalf("unexpected errors: %v", errs)
	}

	payment = validCardPayment()
	payment.AmountMinor = -1
	errs = payment.Validate()
	if len(errs) != 1 || !errors.Is(errs[0], ErrPaymentAmountNegative) {
		t.Fatalf("expected negative amount error, got %v", errs)
	}
}

func TestPaymentCardLifecycle(t *testing.T) {
	payment := validCardPayment()

	// Подтверждение списания до завершения checkout-сессии.
	if _, err := payment.MarkCompleted("ch_1"); !errors.Is(err, ErrPaymentNotProcessing) {
		t.Fatalf("card payment must require processing, got %v", err)
	}

	changed, err := payment.MarkProcessing()
	if err != nil || !changed {
		t.Fatalf("mark processing: changed=%v err=%v", changed, err)
	}
	changed, err = payment.MarkProcessing()
	if err != nil || changed {
		t.Fatalf("duplicate session.completed must be no-op: changed=%v err=%v", changed, err)
	}

	changed, err = payment.MarkCompleted("ch_1")
	if err != nil || !changed {
		t.Fatalf("mark completed: changed=%v err=%v", changed, err)
	}
	if payment.Status != PaymentStatusCompleted || payment.ChargeID != "ch_1" {
		t.Fatalf("unexpected state: %s charge=%q", payment.Status, payment.ChargeID)
	}

	// Дубль webhook payment.succeeded.
	changed, err = payment.MarkCompleted("ch_other")
	if err != nil || changed {
		t.Fatalf("duplicate completion must be no-op: changed=%v err=%v", changed, err)
	}
	if payment.ChargeID != "ch_1" {
		t.Fatalf("duplicate must keep original charge id, got %q", payment.ChargeID)
	}

	if _, err := payment.MarkFailed("late failure"); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("failure after completion must conflict, got %v", err)
	}
	if _, err := payment.MarkProcessing(); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("session.completed after terminal must conflict, got %v", err)
	}
}

func TestPaymentCashOnDeliveryCompletesFromPending(t *testing.T) {
	payment := validCardPayment()
	payment.Method = PaymentMethodCashOnDelivery
	payment.SessionID = ""

	changed, err := payment.MarkCompleted("")
	if err != nil || !changed {
		t.Fatalf("cod completion: changed=%v err=%v", changed, err)
	}
	if payment.Status != PaymentStatusCompleted || payment.ChargeID != "" {
		t.Fatalf("unexpected state: %s charge=%q", payment.Status, payment.ChargeID)
	}
}

func TestPaymentMarkFailed(t *testing.T) {
	payment := validCardPayment()

	changed, err := payment.MarkFailed("session expired")
	if err != nil || !changed {
		t.Fatalf("mark failed: changed=%v err=%v", changed, err)
	}
	if payment.Status != PaymentStatusFailed || payment.FailReason != "session expired" {
		t.Fatalf("unexpected state: %s %q", payment.Status, payment.FailReason)
	}

	changed, err = payment.MarkFailed("another reason")
	if err != nil || changed {
		t.Fatalf("duplicate failure must be no-op: changed=%v err=%v", changed, err)
	}
	if payment.FailReason != "session expired" {
		t.Fatalf("duplicate must keep original reason, got %q", payment.FailReason)
	}

	if _, err := payment.MarkCompleted("ch_1"); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("completion after failure must conflict, got %v", err)
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	terminals := map[PaymentStatus]bool{
		PaymentStatusPending:    false,
		PaymentStatusProcessing: false,
		PaymentStatusCompleted:  true,
		PaymentStatusFailed:     true,
	}
	for status, want := range terminals {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
