package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Payment
	outbox domain.OutboxRepository
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository(outbox domain.OutboxRepository) domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items:  make(map[string]domain.Payment),
		outbox: outbox,
	}
}

// Create сохраняет новый платёж вместе с его событиями.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment, events []domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[payment.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[payment.ID] = payment

	return r.enqueueLocked(events)
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// GetByOrderID возвращает платёж по заказу (связь 1:1).
func (r *paymentRepositoryInMemory) GetByOrderID(orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, payment := range r.items {
		if payment.OrderID == orderID {
			return payment, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// GetBySessionID возвращает платёж по checkout-сессии провайдера.
func (r *paymentRepositoryInMemory) GetBySessionID(sessionID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sessionID == "" {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	for _, payment := range r.items {
		if payment.SessionID == sessionID {
			return payment, nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// Save перезаписывает платёж с проверкой версии и событиями.
func (r *paymentRepositoryInMemory) Save(payment domain.Payment, events []domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[payment.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if current.Version != payment.Version {
		return domain.ErrVersionConflict
	}
	payment.Version++
	payment.UpdatedAt = time.Now().UTC()
	r.items[payment.ID] = payment

	return r.enqueueLocked(events)
}

// ListStale возвращает незавершённые платежи, созданные раньше before.
func (r *paymentRepositoryInMemory) ListStale(before time.Time, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0)
	for _, payment := range r.items {
		if payment.Status.IsTerminal() {
			continue
		}
		if !payment.CreatedAt.Before(before) {
			continue
		}
		result = append(result, payment)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *paymentRepositoryInMemory) enqueueLocked(events []domain.OutboxMessage) error {
	if r.outbox == nil {
		return nil
	}
	for _, event := range events {
		if _, err := r.outbox.Enqueue(event); err != nil {
			return err
		}
	}
	return nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
