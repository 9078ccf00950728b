package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// timelineRepositoryInMemory — in-memory хронология событий заказа.
type timelineRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string][]domain.TimelineEvent
}

// NewTimelineRepository возвращает in-memory хранилище timeline.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{
		items: make(map[string][]domain.TimelineEvent),
	}
}

// Append добавляет событие в хронологию заказа.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return domain.ErrOrderIDRequired
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[event.OrderID] = append(r.items[event.OrderID], event)
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := append([]domain.TimelineEvent(nil), r.items[orderID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
