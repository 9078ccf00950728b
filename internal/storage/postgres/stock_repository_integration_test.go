package postgres

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestStockRepositoryIntegration_ReserveRelease(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	if err := repo.Upsert(domain.StockLevel{SKU: "sku-1", Available: 10}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	orderID := uuid.NewString()
	outcome, err := repo.Reserve(orderID, "sku-1", 4, uuid.NewString())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if outcome != domain.ReserveApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	level, err := repo.Get("sku-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if level.Available != 6 || level.Reserved != 4 {
		t.Fatalf("expected 6/4, got %d/%d", level.Available, level.Reserved)
	}

	// Дубль доставки того же резерва.
	outcome, err = repo.Reserve(orderID, "sku-1", 4, uuid.NewString())
	if err != nil {
		t.Fatalf("duplicate reserve: %v", err)
	}
	if outcome != domain.ReserveDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}
	level, _ = repo.Get("sku-1")
	if level.Available != 6 {
		t.Fatalf("duplicate must not change stock, got %d", level.Available)
	}

	releaseOutcome, err := repo.Release(orderID, "sku-1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if releaseOutcome != domain.ReleaseApplied {
		t.Fatalf("expected release applied, got %s", releaseOutcome)
	}
	level, _ = repo.Get("sku-1")
	if level.Available != 10 || level.Reserved != 0 {
		t.Fatalf("expected 10/0 after release, got %d/%d", level.Available, level.Reserved)
	}

	releaseOutcome, err = repo.Release(orderID, "sku-1")
	if err != nil {
		t.Fatalf("duplicate release: %v", err)
	}
	if releaseOutcome != domain.ReleaseDuplicate {
		t.Fatalf("expected release duplicate, got %s", releaseOutcome)
	}
}

func TestStockRepositoryIntegration_Insufficient(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	if err := repo.Upsert(domain.StockLevel{SKU: "sku-1", Available: 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	orderID := uuid.NewString()
	_, err := repo.Reserve(orderID, "sku-1", 3, uuid.NewString())
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	level, _ := repo.Get("sku-1")
	if level.Available != 2 || level.Reserved != 0 {
		t.Fatalf("rejection must not change stock, got %d/%d", level.Available, level.Reserved)
	}

	// Отклонённый резерв не должен блокировать повторную попытку того же заказа.
	reservations, err := repo.ListReservations(orderID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(reservations) != 0 {
		t.Fatalf("expected no reservations after rejection, got %d", len(reservations))
	}
}

func TestStockRepositoryIntegration_ConcurrentNoOversell(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	const available = 5
	if err := repo.Upsert(domain.StockLevel{SKU: "sku-1", Available: available}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := repo.Reserve(uuid.NewString(), "sku-1", 1, uuid.NewString())
			if err == nil && outcome == domain.ReserveApplied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != available {
		t.Fatalf("expected exactly %d applied, got %d", available, applied)
	}

	level, _ := repo.Get("sku-1")
	if level.Available != 0 || level.Reserved != available {
		t.Fatalf("expected 0/%d, got %d/%d", available, level.Available, level.Reserved)
	}
}
