package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ConsumerName — имя consumer-группы заказного сервиса.
const ConsumerName = "order-service"

// processedEventTTL — срок хранения ключей идемпотентности.
const processedEventTTL = 7 * 24 * time.Hour

// Service — заказной участник саги. Создаёт заказ по payment.initiated,
// применяет исходы оплаты и отказ склада, отвечает на прямые запросы
// пользователя (отмена, завершение, чтение).
type Service struct {
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	processed domain.ProcessedEventRepository
	metrics   *metrics.SagaMetrics
	logger    *log.Entry
}

// NewService создаёт заказной сервис. processed может быть nil —
// тогда защита от повторной доставки опирается только на идемпотентность
// доменных переходов.
func NewService(
	orders domain.OrderRepository,
	timeline domain.TimelineRepository,
	processed domain.ProcessedEventRepository,
	sagaMetrics *metrics.SagaMetrics,
) *Service {
	return &Service{
		orders:    orders,
		timeline:  timeline,
		processed: processed,
		metrics:   sagaMetrics,
		logger:    log.WithField("component", "order-service"),
	}
}

// Get возвращает заказ по идентификатору.
func (s *Service) Get(id string) (domain.Order, error) {
	return s.orders.Get(id)
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (s *Service) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(customerID, limit)
}

// Timeline возвращает историю заказа в хронологическом порядке.
func (s *Service) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

// Cancel отменяет заказ по явному запросу. Допустим только для
// pending/processing; отменённый заказ — no-op, отгруженный — ошибка.
// Вместе с отменой снимаются складские резервы всех позиций.
func (s *Service) Cancel(orderID, reason string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	changed, err := order.Cancel(reason)
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		return order, nil
	}

	events, err := s.cancellationEvents(order, reason, "")
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Save(order, events); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}

	s.appendTimeline(order.ID, domain.EventTypeOrderCanceled, reason)
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order canceled")
	return order, nil
}

// Complete переводит заказ processing → completed и публикует order.completed.
func (s *Service) Complete(orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	changed, err := order.Complete()
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		return order, nil
	}

	event, err := s.buildEvent(order, domain.EventTypeOrderCompleted, domain.OrderCompleted{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Save(order, []domain.OutboxMessage{event}); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}

	s.appendTimeline(order.ID, domain.EventTypeOrderCompleted, "")
	s.logger.WithField("order_id", order.ID).Info("order completed")
	return order, nil
}

// cancellationEvents собирает order.canceled плюс inventory.release на каждую
// позицию. skipSKU исключает позицию, которую склад и так не резервировал.
func (s *Service) cancellationEvents(order domain.Order, reason, skipSKU string) ([]domain.OutboxMessage, error) {
	events := make([]domain.OutboxMessage, 0, len(order.Items)+1)

	canceled, err := s.buildEvent(order, domain.EventTypeOrderCanceled, domain.OrderCanceled{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     reason,
	})
	if err != nil {
		return nil, err
	}
	events = append(events, canceled)

	for _, item := range order.Items {
		if item.SKU == skipSKU {
			continue
		}
		release, err := s.buildStockCommand(order, domain.EventTypeInventoryRelease, item.SKU, domain.InventoryRelease{
			OrderID: order.ID,
			SKU:     item.SKU,
			Qty:     item.Qty,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, release)
	}

	return events, nil
}

func (s *Service) buildEvent(order domain.Order, eventType domain.EventType, payload any) (domain.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		CorrelationID: order.SagaID,
		Payload:       body,
	}, nil
}

// buildStockCommand собирает складскую команду. В отличие от событий
// заказа она партиционируется по SKU: reserve и release одного товара
// должны попасть в одну партицию shop.inventory.commands.
func (s *Service) buildStockCommand(order domain.Order, eventType domain.EventType, sku string, payload any) (domain.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return domain.OutboxMessage{
		AggregateType: "stock",
		AggregateID:   sku,
		EventType:     eventType,
		CorrelationID: order.SagaID,
		Payload:       body,
	}, nil
}

func (s *Service) appendTimeline(orderID string, eventType domain.EventType, reason string) {
	if s.timeline == nil {
		return
	}

	err := s.timeline.Append(domain.TimelineEvent{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}
