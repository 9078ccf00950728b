package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// processedEventRepositoryInMemory — in-memory реестр обработанных событий.
// Ключ — пара (consumer, event id): одно и то же событие могут независимо
// обрабатывать разные consumer-группы.
type processedEventRepositoryInMemory struct {
	mu    sync.Mutex
	items map[string]domain.ProcessedEvent
}

// NewProcessedEventRepository возвращает in-memory реестр дедупликации.
func NewProcessedEventRepository() domain.ProcessedEventRepository {
	return &processedEventRepositoryInMemory{
		items: make(map[string]domain.ProcessedEvent),
	}
}

func processedKey(consumer, eventID string) string {
	return consumer + "/" + eventID
}

// MarkProcessed фиксирует обработку; повторная отметка возвращает false.
func (r *processedEventRepositoryInMemory) MarkProcessed(consumer, eventID string, ttlAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := processedKey(consumer, eventID)
	if _, exists := r.items[key]; exists {
		return false, nil
	}

	r.items[key] = domain.ProcessedEvent{
		Consumer:    consumer,
		EventID:     eventID,
		TTLAt:       ttlAt,
		ProcessedAt: time.Now().UTC(),
	}
	return true, nil
}

// Seen сообщает, обрабатывалось ли событие данным consumer.
func (r *processedEventRepositoryInMemory) Seen(consumer, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.items[processedKey(consumer, eventID)]
	return exists, nil
}

// DeleteExpired удаляет записи с истёкшим TTL, не более limit за вызов.
func (r *processedEventRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, rec := range r.items {
		if limit > 0 && deleted >= limit {
			break
		}
		if rec.TTLAt.Before(before) {
			delete(r.items, key)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepositoryInMemory)(nil)
