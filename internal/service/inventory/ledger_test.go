package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func newLedgerForTest(t *testing.T, sku string, available int32) (*Ledger, domain.StockRepository, domain.OutboxRepository) {
	t.Helper()

	stock := memory.NewStockRepository()
	if err := stock.Upsert(domain.StockLevel{SKU: sku, Available: available}); err != nil {
		t.Fatalf("upsert stock: %v", err)
	}
	outbox := memory.NewOutboxRepository()

	return NewLedger(stock, outbox, nil), stock, outbox
}

func reserveEnvelope(t *testing.T, orderID, sku string, qty int32) kafka.Envelope {
	t.Helper()

	env, err := kafka.NewEnvelope(domain.EventTypeInventoryReserve, orderID, domain.InventoryReserve{
		OrderID: orderID,
		SKU:     sku,
		Qty:     qty,
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	return env
}

func releaseEnvelope(t *testing.T, orderID, sku string, qty int32) kafka.Envelope {
	t.Helper()

	env, err := kafka.NewEnvelope(domain.EventTypeInventoryRelease, orderID, domain.InventoryRelease{
		OrderID: orderID,
		SKU:     sku,
		Qty:     qty,
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	return env
}

func TestLedger_HandleReserve_Applied(t *testing.T) {
	ledger, stock, outbox := newLedgerForTest(t, "sku-1", 10)

	env := reserveEnvelope(t, "order-1", "sku-1", 3)
	if err := ledger.Handler()(context.Background(), env); err != nil {
		t.Fatalf("handle reserve: %v", err)
	}

	level, _ := stock.Get("sku-1")
	if level.Available != 7 || level.Reserved != 3 {
		t.Fatalf("expected 7/3, got %d/%d", level.Available, level.Reserved)
	}

	pending, _ := outbox.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("successful reserve must not emit events, got %d", len(pending))
	}
}

func TestLedger_HandleReserve_RedeliveryIsNoop(t *testing.T) {
	ledger, stock, _ := newLedgerForTest(t, "sku-1", 10)

	env := reserveEnvelope(t, "order-1", "sku-1", 3)
	for i := 0; i < 3; i++ {
		if err := ledger.HandleReserve(context.Background(), env); err != nil {
			t.Fatalf("handle reserve #%d: %v", i, err)
		}
	}

	level, _ := stock.Get("sku-1")
	if level.Available != 7 || level.Reserved != 3 {
		t.Fatalf("redelivery must not re-apply, got %d/%d", level.Available, level.Reserved)
	}
}

func TestLedger_HandleReserve_InsufficientPublishesRejected(t *testing.T) {
	ledger, stock, outbox := newLedgerForTest(t, "sku-1", 2)

	env := reserveEnvelope(t, "order-1", "sku-1", 5)
	if err := ledger.HandleReserve(context.Background(), env); err != nil {
		t.Fatalf("business rejection must not be an error: %v", err)
	}

	// Остаток не изменился.
	level, _ := stock.Get("sku-1")
	if level.Available != 2 || level.Reserved != 0 {
		t.Fatalf("expected 2/0, got %d/%d", level.Available, level.Reserved)
	}

	pending, _ := outbox.PullPending(10)
	if len(pending) != 1 {
		t.Fatalf("expected 1 rejected event, got %d", len(pending))
	}
	if pending[0].EventType != domain.EventTypeInventoryRejected {
		t.Fatalf("expected inventory.rejected, got %s", pending[0].EventType)
	}
	if pending[0].AggregateID != "order-1" {
		t.Fatalf("rejected event must be keyed by order id, got %s", pending[0].AggregateID)
	}

	var rejected domain.InventoryRejected
	if err := json.Unmarshal(pending[0].Payload, &rejected); err != nil {
		t.Fatalf("decode rejected payload: %v", err)
	}
	if rejected.SKU != "sku-1" || rejected.Reason == "" {
		t.Fatalf("unexpected rejected payload: %+v", rejected)
	}
}

func TestLedger_HandleReserve_UnknownSKUPublishesRejected(t *testing.T) {
	ledger, _, outbox := newLedgerForTest(t, "sku-1", 2)

	env := reserveEnvelope(t, "order-1", "sku-missing", 1)
	if err := ledger.HandleReserve(context.Background(), env); err != nil {
		t.Fatalf("unknown sku must not be an error: %v", err)
	}

	pending, _ := outbox.PullPending(10)
	if len(pending) != 1 {
		t.Fatalf("expected 1 rejected event, got %d", len(pending))
	}
}

func TestLedger_HandleRelease(t *testing.T) {
	ledger, stock, _ := newLedgerForTest(t, "sku-1", 10)

	if err := ledger.HandleReserve(context.Background(), reserveEnvelope(t, "order-1", "sku-1", 4)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.HandleRelease(context.Background(), releaseEnvelope(t, "order-1", "sku-1", 4)); err != nil {
		t.Fatalf("release: %v", err)
	}

	level, _ := stock.Get("sku-1")
	if level.Available != 10 || level.Reserved != 0 {
		t.Fatalf("expected 10/0, got %d/%d", level.Available, level.Reserved)
	}

	// Повторный release и release без резерва — no-op.
	if err := ledger.HandleRelease(context.Background(), releaseEnvelope(t, "order-1", "sku-1", 4)); err != nil {
		t.Fatalf("duplicate release: %v", err)
	}
	if err := ledger.HandleRelease(context.Background(), releaseEnvelope(t, "order-other", "sku-1", 4)); err != nil {
		t.Fatalf("release without reservation: %v", err)
	}
	level, _ = stock.Get("sku-1")
	if level.Available != 10 {
		t.Fatalf("no-op releases must not change stock, got %d", level.Available)
	}
}

func TestLedger_Handler_UnknownEventType(t *testing.T) {
	ledger, _, _ := newLedgerForTest(t, "sku-1", 10)

	env, err := kafka.NewEnvelope(domain.EventTypeOrderCreated, "order-1", domain.OrderCreated{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	handleErr := ledger.Handler()(context.Background(), env)
	if !errors.Is(handleErr, domain.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", handleErr)
	}
}
