package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ConsumerName — имя consumer-группы складского сервиса.
const ConsumerName = "inventory-service"

// Ledger — складской участник саги. Потребляет команды
// inventory.reserve/inventory.release и отвечает компенсирующим
// событием inventory.rejected, когда остатка не хватает.
type Ledger struct {
	stock   domain.StockRepository
	outbox  domain.OutboxRepository
	metrics *metrics.SagaMetrics
	logger  *log.Entry
}

// NewLedger создаёт складской сервис.
// Событие inventory.rejected ставится в outbox, а не публикуется напрямую:
// отказ склада доставляется с теми же гарантиями, что и остальные события.
func NewLedger(stock domain.StockRepository, outbox domain.OutboxRepository, sagaMetrics *metrics.SagaMetrics) *Ledger {
	return &Ledger{
		stock:   stock,
		outbox:  outbox,
		metrics: sagaMetrics,
		logger:  log.WithField("component", "inventory-ledger"),
	}
}

// Handler возвращает обработчик envelope для consumer-группы склада.
func (l *Ledger) Handler() kafka.EnvelopeHandler {
	return func(ctx context.Context, env kafka.Envelope) error {
		l.recordConsumed(string(env.EventType))

		switch env.EventType {
		case domain.EventTypeInventoryReserve:
			return l.HandleReserve(ctx, env)
		case domain.EventTypeInventoryRelease:
			return l.HandleRelease(ctx, env)
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnknownEventType, env.EventType)
		}
	}
}

// HandleReserve применяет команду резервирования. Нехватка остатка и
// неизвестный SKU — бизнес-отказы: вместо retry публикуется
// inventory.rejected, и сага компенсируется на стороне заказа.
func (l *Ledger) HandleReserve(_ context.Context, env kafka.Envelope) error {
	var cmd domain.InventoryReserve
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		return fmt.Errorf("%w: decode inventory.reserve: %v", domain.ErrUnknownEventType, err)
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnknownEventType, err)
	}

	logger := l.logger.WithFields(log.Fields{
		"order_id": cmd.OrderID,
		"sku":      cmd.SKU,
		"qty":      cmd.Qty,
	})

	outcome, err := l.stock.Reserve(cmd.OrderID, cmd.SKU, cmd.Qty, env.EventID)
	switch {
	case err == nil:
	case domain.IsInsufficientStock(err):
		logger.Warn("reserve rejected: insufficient stock")
		l.recordReservation("rejected")
		return l.publishRejected(env, cmd, "insufficient stock")
	case errors.Is(err, domain.ErrStockNotFound):
		logger.Warn("reserve rejected: unknown sku")
		l.recordReservation("rejected")
		return l.publishRejected(env, cmd, "unknown sku")
	default:
		return fmt.Errorf("reserve stock: %w", err)
	}

	switch outcome {
	case domain.ReserveApplied:
		logger.Info("stock reserved")
		l.recordReservation("applied")
	case domain.ReserveDuplicate:
		logger.Debug("duplicate reserve command ignored")
		l.recordReservation("duplicate")
		l.recordDropped("duplicate")
	}

	return nil
}

// HandleRelease применяет компенсирующую команду возврата резерва.
// Release без соответствующего применённого резерва — no-op: строка могла
// быть отклонена складом или уже снята при предыдущей доставке.
func (l *Ledger) HandleRelease(_ context.Context, env kafka.Envelope) error {
	var cmd domain.InventoryRelease
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		return fmt.Errorf("%w: decode inventory.release: %v", domain.ErrUnknownEventType, err)
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnknownEventType, err)
	}

	logger := l.logger.WithFields(log.Fields{
		"order_id": cmd.OrderID,
		"sku":      cmd.SKU,
	})

	outcome, err := l.stock.Release(cmd.OrderID, cmd.SKU)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	switch outcome {
	case domain.ReleaseApplied:
		logger.Info("stock reservation released")
		l.recordReservation("released")
	case domain.ReleaseDuplicate:
		logger.Debug("duplicate release command ignored")
		l.recordDropped("duplicate")
	case domain.ReleaseNoReservation:
		logger.Debug("release without reservation ignored")
		l.recordDropped("no_reservation")
	}

	return nil
}

func (l *Ledger) publishRejected(env kafka.Envelope, cmd domain.InventoryReserve, reason string) error {
	payload, err := json.Marshal(domain.InventoryRejected{
		OrderID: cmd.OrderID,
		SKU:     cmd.SKU,
		Reason:  reason,
	})
	if err != nil {
		return fmt.Errorf("marshal inventory.rejected: %w", err)
	}

	if _, err := l.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "inventory",
		AggregateID:   cmd.OrderID,
		EventType:     domain.EventTypeInventoryRejected,
		CorrelationID: env.CorrelationID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue inventory.rejected: %w", err)
	}

	if l.metrics != nil {
		l.metrics.RecordOutboxEvent()
	}
	return nil
}

func (l *Ledger) recordConsumed(eventType string) {
	if l.metrics != nil {
		l.metrics.RecordEventConsumed(ConsumerName, eventType)
	}
}

func (l *Ledger) recordDropped(reason string) {
	if l.metrics != nil {
		l.metrics.RecordEventDropped(ConsumerName, reason)
	}
}

func (l *Ledger) recordReservation(result string) {
	if l.metrics != nil {
		l.metrics.RecordReservation(result)
	}
}
