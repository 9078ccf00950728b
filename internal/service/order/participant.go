package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// Handler возвращает обработчик envelope для consumer-группы заказов.
// Группа подписана на платёжные и складские события саги.
func (s *Service) Handler() kafka.EnvelopeHandler {
	return func(ctx context.Context, env kafka.Envelope) error {
		s.recordConsumed(string(env.EventType))

		// Быстрый путь дедупликации: обработанный event id пропускается
		// без обращения к агрегату. Доменные переходы идемпотентны и без
		// этой записи, поэтому потеря ключа не ломает корректность.
		if seen, err := s.seenEvent(env.EventID); err != nil {
			s.logger.WithError(err).Warn("failed to check processed event, continuing")
		} else if seen {
			s.recordDropped("duplicate")
			return nil
		}

		start := time.Now()
		var err error
		switch env.EventType {
		case domain.EventTypePaymentInitiated:
			err = s.HandlePaymentInitiated(ctx, env)
		case domain.EventTypePaymentCompleted:
			err = s.HandlePaymentCompleted(ctx, env)
		case domain.EventTypePaymentFailed:
			err = s.HandlePaymentFailed(ctx, env)
		case domain.EventTypeInventoryRejected:
			err = s.HandleInventoryRejected(ctx, env)
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnknownEventType, env.EventType)
		}
		s.recordHandleDuration(string(env.EventType), time.Since(start))

		if err != nil {
			return err
		}

		s.markProcessed(env.EventID)
		return nil
	}
}

// HandlePaymentInitiated создаёт заказ и ставит в тот же коммит
// order.created плюс inventory.reserve на каждую позицию. Повторная
// доставка упирается в ErrOrderExists и пропускается.
func (s *Service) HandlePaymentInitiated(_ context.Context, env kafka.Envelope) error {
	evt, err := decodePayload[domain.PaymentInitiated](env)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:           evt.OrderID,
		Number:       orderNumber(evt.OrderID),
		CustomerID:   evt.CustomerID,
		Status:       domain.OrderStatusPending,
		PaymentState: domain.PaymentStatePending,
		Currency:     evt.Currency,
		AmountMinor:  evt.AmountMinor,
		PaymentID:    evt.PaymentID,
		SagaID:       env.CorrelationID,
		CreatedVia:   "checkout",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, item := range evt.Items {
		order.Items = append(order.Items, domain.OrderItem{
			SKU:        item.SKU,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		// Событие прошло Validate, но нарушает инварианты заказа
		// (например, сумма не сходится с позициями) — poison.
		return fmt.Errorf("%w: %v", domain.ErrUnknownEventType, errs[0])
	}

	events := make([]domain.OutboxMessage, 0, len(order.Items)+1)
	created, err := s.buildEvent(order, domain.EventTypeOrderCreated, domain.OrderCreated{
		OrderID:     order.ID,
		Number:      order.Number,
		CustomerID:  order.CustomerID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
	})
	if err != nil {
		return err
	}
	events = append(events, created)

	for _, item := range order.Items {
		reserve, err := s.buildStockCommand(order, domain.EventTypeInventoryReserve, item.SKU, domain.InventoryReserve{
			OrderID: order.ID,
			SKU:     item.SKU,
			Qty:     item.Qty,
		})
		if err != nil {
			return err
		}
		events = append(events, reserve)
	}

	if err := s.orders.Create(order, events); err != nil {
		if errors.Is(err, domain.ErrOrderExists) {
			s.logger.WithField("order_id", order.ID).Debug("duplicate payment.initiated ignored")
			s.recordDropped("duplicate")
			return nil
		}
		return fmt.Errorf("create order: %w", err)
	}

	s.appendTimeline(order.ID, domain.EventTypeOrderCreated, "")
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"number":   order.Number,
		"saga_id":  order.SagaID,
	}).Info("order created")
	return nil
}

// HandlePaymentCompleted фиксирует оплату: pending → processing/paid
// и публикует order.status.changed. Повторная доставка — no-op.
func (s *Service) HandlePaymentCompleted(_ context.Context, env kafka.Envelope) error {
	evt, err := decodePayload[domain.PaymentCompleted](env)
	if err != nil {
		return err
	}

	order, err := s.orders.Get(evt.OrderID)
	if err != nil {
		// Outbox сохраняет порядок событий одного агрегата, поэтому
		// заказ к этому моменту уже создан. Неизвестный заказ — retry:
		// возможна гонка разных партиций.
		return fmt.Errorf("load order %s: %w", evt.OrderID, err)
	}

	changed, err := order.MarkPaid()
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("payment.completed conflicts with order state")
		s.recordDropped("conflict")
		return nil
	}
	if !changed {
		s.recordDropped("duplicate")
		return nil
	}
	if evt.PaymentID != "" {
		order.PaymentID = evt.PaymentID
	}

	event, err := s.buildEvent(order, domain.EventTypeOrderStatusChanged, domain.OrderStatusChanged{
		OrderID:      order.ID,
		Status:       string(order.Status),
		PaymentState: string(order.PaymentState),
	})
	if err != nil {
		return err
	}
	if err := s.orders.Save(order, []domain.OutboxMessage{event}); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	s.appendTimeline(order.ID, domain.EventTypeOrderStatusChanged, "payment confirmed")
	s.logger.WithField("order_id", order.ID).Info("order marked paid")
	return nil
}

// HandlePaymentFailed отменяет заказ и снимает складские резервы всех
// позиций — компенсация неуспешной оплаты.
func (s *Service) HandlePaymentFailed(_ context.Context, env kafka.Envelope) error {
	evt, err := decodePayload[domain.PaymentFailed](env)
	if err != nil {
		return err
	}

	order, err := s.orders.Get(evt.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", evt.OrderID, err)
	}

	reason := evt.Reason
	if reason == "" {
		reason = "payment failed"
	}

	changed, err := order.MarkPaymentFailed(reason)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("payment.failed conflicts with order state")
		s.recordDropped("conflict")
		return nil
	}
	if !changed {
		s.recordDropped("duplicate")
		return nil
	}

	events, err := s.cancellationEvents(order, reason, "")
	if err != nil {
		return err
	}
	if err := s.orders.Save(order, events); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	s.appendTimeline(order.ID, domain.EventTypeOrderCanceled, reason)
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order canceled after payment failure")
	return nil
}

// HandleInventoryRejected отменяет заказ, которому склад отказал в резерве,
// и снимает резервы остальных позиций. Отклонённая позиция резерва не
// получила, поэтому release на неё не публикуется.
func (s *Service) HandleInventoryRejected(_ context.Context, env kafka.Envelope) error {
	evt, err := decodePayload[domain.InventoryRejected](env)
	if err != nil {
		return err
	}

	order, err := s.orders.Get(evt.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", evt.OrderID, err)
	}

	reason := fmt.Sprintf("inventory rejected sku %s: %s", evt.SKU, evt.Reason)
	changed, err := order.Cancel(reason)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("inventory.rejected conflicts with order state")
		s.recordDropped("conflict")
		return nil
	}
	if !changed {
		s.recordDropped("duplicate")
		return nil
	}

	events, err := s.cancellationEvents(order, reason, evt.SKU)
	if err != nil {
		return err
	}
	if err := s.orders.Save(order, events); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	s.appendTimeline(order.ID, domain.EventTypeOrderCanceled, reason)
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"sku":      evt.SKU,
	}).Info("order canceled after inventory rejection")
	return nil
}

func decodePayload[T interface{ Validate() error }](env kafka.Envelope) (T, error) {
	payload, err := env.DecodePayload()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", domain.ErrUnknownEventType, err)
	}
	typed, ok := payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: unexpected payload type for %s", domain.ErrUnknownEventType, env.EventType)
	}
	return typed, nil
}

// orderNumber выводит человекочитаемый номер из order id. Номер
// детерминированный: повторная доставка payment.initiated не породит
// второй номер для того же заказа.
func orderNumber(orderID string) string {
	compact := strings.ReplaceAll(orderID, "-", "")
	if len(compact) > 10 {
		compact = compact[:10]
	}
	return "ORD-" + strings.ToUpper(compact)
}

func (s *Service) seenEvent(eventID string) (bool, error) {
	if s.processed == nil {
		return false, nil
	}
	return s.processed.Seen(ConsumerName, eventID)
}

func (s *Service) markProcessed(eventID string) {
	if s.processed == nil {
		return
	}
	if _, err := s.processed.MarkProcessed(ConsumerName, eventID, time.Now().UTC().Add(processedEventTTL)); err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("failed to mark event processed")
	}
}

func (s *Service) recordConsumed(eventType string) {
	if s.metrics != nil {
		s.metrics.RecordEventConsumed(ConsumerName, eventType)
	}
}

func (s *Service) recordDropped(reason string) {
	if s.metrics != nil {
		s.metrics.RecordEventDropped(ConsumerName, reason)
	}
}

func (s *Service) recordHandleDuration(eventType string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordHandleDuration(ConsumerName, eventType, duration)
	}
}
