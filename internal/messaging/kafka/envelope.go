package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Topics саги. Ключ партиционирования выбирается так, чтобы события одной
// сущности попадали в одну партицию и обрабатывались в порядке публикации:
// order id для платёжных и заказных topic, SKU для складских команд.
const (
	TopicPaymentEvents     = "shop.payment.events"
	TopicInventoryCommands = "shop.inventory.commands"
	TopicInventoryEvents   = "shop.inventory.events"
	TopicOrderEvents       = "shop.order.events"
	TopicDeadLetterQueue   = "shop.dlq" // Dead Letter Queue для poison messages
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — транспортная обёртка события саги. correlation id связывает
// все события одного оформления заказа; event id уникален для каждой
// публикации и служит ключом идемпотентности на стороне consumer.
type Envelope struct {
	EventID       string           `json:"event_id"`
	EventType     domain.EventType `json:"event_type"`
	CorrelationID string           `json:"correlation_id"`
	OccurredAt    time.Time        `json:"occurred_at"`
	Payload       json.RawMessage  `json:"payload"`
}

// NewEnvelope собирает envelope с новым event id.
func NewEnvelope(eventType domain.EventType, correlationID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event payload: %w", err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       data,
	}, nil
}

// ParseEnvelope разбирает envelope из сырого сообщения брокера.
func ParseEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.EventID == "" {
		return Envelope{}, fmt.Errorf("event envelope without event_id")
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("event envelope without event_type")
	}
	return env, nil
}

// DecodePayload десериализует payload в типизированную структуру по типу
// события. Множество вариантов закрыто: неизвестный тип — ошибка, а не
// map[string]interface{}.
func (e Envelope) DecodePayload() (any, error) {
	switch e.EventType {
	case domain.EventTypePaymentInitiated:
		return decodeValidated[domain.PaymentInitiated](e)
	case domain.EventTypePaymentCompleted:
		return decodeValidated[domain.PaymentCompleted](e)
	case domain.EventTypePaymentFailed:
		return decodeValidated[domain.PaymentFailed](e)
	case domain.EventTypeInventoryReserve:
		return decodeValidated[domain.InventoryReserve](e)
	case domain.EventTypeInventoryRelease:
		return decodeValidated[domain.InventoryRelease](e)
	case domain.EventTypeInventoryRejected:
		return decodeValidated[domain.InventoryRejected](e)
	case domain.EventTypeOrderCreated:
		return decodeValidated[domain.OrderCreated](e)
	case domain.EventTypeOrderStatusChanged:
		return decodeValidated[domain.OrderStatusChanged](e)
	case domain.EventTypeOrderCanceled:
		return decodeValidated[domain.OrderCanceled](e)
	case domain.EventTypeOrderCompleted:
		return decodeValidated[domain.OrderCompleted](e)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventType, e.EventType)
	}
}

type validatable interface {
	Validate() error
}

func decodeValidated[T validatable](e Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal %s payload: %w", e.EventType, err)
	}
	if err := payload.Validate(); err != nil {
		return payload, fmt.Errorf("validate %s payload: %w", e.EventType, err)
	}
	return payload, nil
}

// TopicForEvent возвращает topic, в который публикуется событие данного типа.
func TopicForEvent(eventType domain.EventType) string {
	switch eventType {
	case domain.EventTypePaymentInitiated,
		domain.EventTypePaymentCompleted,
		domain.EventTypePaymentFailed:
		return TopicPaymentEvents
	case domain.EventTypeInventoryReserve,
		domain.EventTypeInventoryRelease:
		return TopicInventoryCommands
	case domain.EventTypeInventoryRejected:
		return TopicInventoryEvents
	default:
		return TopicOrderEvents
	}
}
