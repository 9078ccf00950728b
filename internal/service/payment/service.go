package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// ConsumerName — имя consumer-группы платёжного сервиса.
const ConsumerName = "payment-service"

// CheckoutItem — позиция корзины в запросе оформления.
type CheckoutItem struct {
	SKU        string `json:"sku"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// CheckoutRequest — запрос оформления заказа.
type CheckoutRequest struct {
	CustomerID string         `json:"customer_id"`
	Currency   string         `json:"currency"`
	Method     string         `json:"method"`
	Items      []CheckoutItem `json:"items"`
}

// CheckoutResult возвращается клиенту после инициации оплаты.
type CheckoutResult struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
}

// Service — платёжный сервис: инициирует оплату (и тем самым сагу),
// применяет webhook провайдера и гасит зависшие сессии.
type Service struct {
	payments domain.PaymentRepository
	metrics  *metrics.SagaMetrics
	logger   *log.Entry
}

// NewService создаёт платёжный сервис.
func NewService(payments domain.PaymentRepository, sagaMetrics *metrics.SagaMetrics) *Service {
	return &Service{
		payments: payments,
		metrics:  sagaMetrics,
		logger:   log.WithField("component", "payment-service"),
	}
}

// Initiate создаёт платёж и ставит payment.initiated в outbox — это
// стартовое событие саги, заказ появится на стороне order-сервиса.
// Для cash_on_delivery платёж подтверждается сразу, без внешнего callback.
func (s *Service) Initiate(req CheckoutRequest) (CheckoutResult, error) {
	now := time.Now().UTC()

	items := make([]domain.EventLineItem, 0, len(req.Items))
	var amount int64
	for _, item := range req.Items {
		items = append(items, domain.EventLineItem{
			SKU:        item.SKU,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
		amount += int64(item.Qty) * item.PriceMinor
	}

	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     uuid.NewString(),
		SagaID:      uuid.NewString(),
		Method:      domain.PaymentMethod(req.Method),
		Status:      domain.PaymentStatusPending,
		AmountMinor: amount,
		Currency:    req.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if payment.Method == domain.PaymentMethodCard {
		payment.SessionID = "cs_" + uuid.NewString()
	}

	if errs := payment.Validate(); len(errs) > 0 {
		return CheckoutResult{}, errs[0]
	}
	initiated := domain.PaymentInitiated{
		PaymentID:   payment.ID,
		OrderID:     payment.OrderID,
		CustomerID:  req.CustomerID,
		Method:      string(payment.Method),
		AmountMinor: payment.AmountMinor,
		Currency:    payment.Currency,
		Items:       items,
	}
	if err := initiated.Validate(); err != nil {
		return CheckoutResult{}, err
	}

	events := make([]domain.OutboxMessage, 0, 2)
	initiatedEvent, err := s.buildEvent(payment, domain.EventTypePaymentInitiated, initiated)
	if err != nil {
		return CheckoutResult{}, err
	}
	events = append(events, initiatedEvent)

	if payment.Method == domain.PaymentMethodCashOnDelivery {
		if _, err := payment.MarkCompleted(""); err != nil {
			return CheckoutResult{}, err
		}
		completedEvent, err := s.buildEvent(payment, domain.EventTypePaymentCompleted, domain.PaymentCompleted{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			AmountMinor: payment.AmountMinor,
		})
		if err != nil {
			return CheckoutResult{}, err
		}
		events = append(events, completedEvent)
	}

	if err := s.payments.Create(payment, events); err != nil {
		return CheckoutResult{}, fmt.Errorf("create payment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSagaStarted()
		for range events {
			s.metrics.RecordOutboxEvent()
		}
	}
	if payment.Status.IsTerminal() {
		s.recordPayment(string(payment.Status))
	}

	s.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"method":     payment.Method,
	}).Info("payment initiated")

	return CheckoutResult{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		SessionID: payment.SessionID,
		Status:    string(payment.Status),
	}, nil
}

// Get возвращает платёж по идентификатору.
func (s *Service) Get(id string) (domain.Payment, error) {
	return s.payments.Get(id)
}

// HandleSessionCompleted переводит платёж pending -> processing:
// покупатель завершил checkout-сессию, провайдер начал списание.
func (s *Service) HandleSessionCompleted(sessionID string) error {
	payment, err := s.payments.GetBySessionID(sessionID)
	if err != nil {
		return err
	}

	changed, err := payment.MarkProcessing()
	if err != nil {
		return err
	}
	if !changed {
		s.logger.WithField("payment_id", payment.ID).Debug("duplicate session.completed ignored")
		return nil
	}

	if err := s.payments.Save(payment, nil); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}

	s.logger.WithField("payment_id", payment.ID).Info("checkout session completed")
	return nil
}

// HandlePaymentSucceeded переводит платёж в completed и публикует
// payment.completed. Повторная доставка webhook — no-op.
func (s *Service) HandlePaymentSucceeded(sessionID, chargeID string) error {
	payment, err := s.payments.GetBySessionID(sessionID)
	if err != nil {
		return err
	}

	changed, err := payment.MarkCompleted(chargeID)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.WithField("payment_id", payment.ID).Debug("duplicate payment.succeeded ignored")
		return nil
	}

	event, err := s.buildEvent(payment, domain.EventTypePaymentCompleted, domain.PaymentCompleted{
		PaymentID:   payment.ID,
		OrderID:     payment.OrderID,
		AmountMinor: payment.AmountMinor,
		ChargeID:    chargeID,
	})
	if err != nil {
		return err
	}

	if err := s.payments.Save(payment, []domain.OutboxMessage{event}); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}

	s.recordPayment(string(payment.Status))
	s.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
	}).Info("payment completed")
	return nil
}

// HandlePaymentFailed переводит платёж в failed и публикует payment.failed —
// сигнал компенсации для заказа и склада.
func (s *Service) HandlePaymentFailed(sessionID, reason string) error {
	payment, err := s.payments.GetBySessionID(sessionID)
	if err != nil {
		return err
	}
	return s.failPayment(payment, reason)
}

func (s *Service) failPayment(payment domain.Payment, reason string) error {
	changed, err := payment.MarkFailed(reason)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.WithField("payment_id", payment.ID).Debug("duplicate payment.failed ignored")
		return nil
	}

	event, err := s.buildEvent(payment, domain.EventTypePaymentFailed, domain.PaymentFailed{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Reason:    reason,
	})
	if err != nil {
		return err
	}

	if err := s.payments.Save(payment, []domain.OutboxMessage{event}); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}

	s.recordPayment(string(payment.Status))
	s.logger.WithFields(log.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"reason":     reason,
	}).Info("payment failed")
	return nil
}

func (s *Service) buildEvent(payment domain.Payment, eventType domain.EventType, payload any) (domain.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   payment.OrderID,
		EventType:     eventType,
		CorrelationID: payment.SagaID,
		Payload:       body,
	}, nil
}

// recordPayment вызывается только на терминальных переходах платежа,
// поэтому здесь же закрывается gauge активных саг.
func (s *Service) recordPayment(status string) {
	if s.metrics != nil {
		s.metrics.RecordPayment(status)
		s.metrics.RecordSagaFinished()
	}
}
