package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// stockRepositoryInMemory — in-memory реализация StockRepository.
// Проверка остатка и списание выполняются под одним lock: это in-memory
// эквивалент условного UPDATE ... WHERE available >= qty в postgres.
type stockRepositoryInMemory struct {
	mu           sync.Mutex
	levels       map[string]domain.StockLevel
	reservations map[string]domain.Reservation // ключ: orderID + "/" + sku
}

// NewStockRepository возвращает in-memory складской реестр.
func NewStockRepository() domain.StockRepository {
	return &stockRepositoryInMemory{
		levels:       make(map[string]domain.StockLevel),
		reservations: make(map[string]domain.Reservation),
	}
}

func reservationKey(orderID, sku string) string {
	return orderID + "/" + sku
}

// Get возвращает остаток по SKU или ErrStockNotFound.
func (r *stockRepositoryInMemory) Get(sku string) (domain.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	level, ok := r.levels[sku]
	if !ok {
		return domain.StockLevel{}, domain.ErrStockNotFound
	}
	return level, nil
}

// Upsert создаёт или заменяет остаток.
func (r *stockRepositoryInMemory) Upsert(level domain.StockLevel) error {
	if level.SKU == "" {
		return domain.ErrItemSKURequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	level.UpdatedAt = time.Now().UTC()
	r.levels[level.SKU] = level
	return nil
}

// Reserve атомарно списывает остаток и фиксирует резерв (orderID, sku).
func (r *stockRepositoryInMemory) Reserve(orderID, sku string, qty int32, eventID string) (domain.ReserveOutcome, error) {
	if qty <= 0 {
		return "", domain.ErrItemQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Дубль доставки: резерв уже применён, остаток не трогаем.
	if _, exists := r.reservations[reservationKey(orderID, sku)]; exists {
		return domain.ReserveDuplicate, nil
	}

	level, ok := r.levels[sku]
	if !ok {
		return "", domain.ErrStockNotFound
	}
	if level.Available < qty {
		return "", domain.ErrInsufficientStock
	}

	now := time.Now().UTC()
	level.Available -= qty
	level.Reserved += qty
	level.UpdatedAt = now
	r.levels[sku] = level

	r.reservations[reservationKey(orderID, sku)] = domain.Reservation{
		OrderID:   orderID,
		SKU:       sku,
		Qty:       qty,
		State:     domain.ReservationStateApplied,
		EventID:   eventID,
		AppliedAt: now,
	}

	return domain.ReserveApplied, nil
}

// Release атомарно возвращает остаток применённого резерва.
func (r *stockRepositoryInMemory) Release(orderID, sku string) (domain.ReleaseOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[reservationKey(orderID, sku)]
	if !ok {
		return domain.ReleaseNoReservation, nil
	}
	if res.State == domain.ReservationStateReleased {
		return domain.ReleaseDuplicate, nil
	}

	level, ok := r.levels[sku]
	if !ok {
		return "", domain.ErrStockNotFound
	}

	now := time.Now().UTC()
	level.Available += res.Qty
	level.Reserved -= res.Qty
	level.UpdatedAt = now
	r.levels[sku] = level

	res.State = domain.ReservationStateReleased
	res.ReleasedAt = now
	r.reservations[reservationKey(orderID, sku)] = res

	return domain.ReleaseApplied, nil
}

// ListReservations возвращает резервы заказа.
func (r *stockRepositoryInMemory) ListReservations(orderID string) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Reservation, 0)
	for _, res := range r.reservations {
		if res.OrderID == orderID {
			result = append(result, res)
		}
	}
	return result, nil
}

var _ domain.StockRepository = (*stockRepositoryInMemory)(nil)
