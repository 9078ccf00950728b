package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	nonRetryable := []error{
		ErrInsufficientStock,
		ErrDuplicateEvent,
		ErrTerminalState,
		ErrInvalidSignature,
		ErrUnknownEventType,
		ErrOrderExists,
		ErrCancelNotAllowed,
		ErrCompleteNotAllowed,
	}
	for _, err := range nonRetryable {
		if IsRetryable(err) {
			t.Fatalf("%v must not be retryable", err)
		}
		// Классификация работает и для обёрнутых ошибок.
		if IsRetryable(fmt.Errorf("handle event: %w", err)) {
			t.Fatalf("wrapped %v must not be retryable", err)
		}
	}

	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}

	// Заказ может ещё не существовать из-за гонки партиций — это retry.
	if !IsRetryable(ErrOrderNotFound) {
		t.Fatal("order not found must be retryable")
	}
	if !IsRetryable(errors.New("connection refused")) {
		t.Fatal("infrastructure errors must be retryable")
	}
	if !IsRetryable(ErrVersionConflict) {
		t.Fatal("version conflict must be retryable")
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsVersionConflict(fmt.Errorf("save order: %w", ErrVersionConflict)) {
		t.Fatal("wrapped version conflict must match")
	}
	if !IsInsufficientStock(fmt.Errorf("reserve: %w", ErrInsufficientStock)) {
		t.Fatal("wrapped insufficient stock must match")
	}
	if !IsTerminalState(fmt.Errorf("transition: %w", ErrTerminalState)) {
		t.Fatal("wrapped terminal state must match")
	}
	if IsVersionConflict(ErrOrderNotFound) || IsInsufficientStock(nil) || IsTerminalState(nil) {
		t.Fatal("predicates must not match unrelated errors")
	}
}
