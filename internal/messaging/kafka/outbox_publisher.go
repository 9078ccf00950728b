package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka. Topic выбирается
// по типу события, ключ партиционирования — AggregateID сообщения.
type OutboxTopicPublisher struct {
	producer *Producer
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{producer: producer}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	// Outbox id становится event id: повторная публикация после сбоя
	// доставит envelope с тем же идентификатором, consumer отбросит дубль.
	env := Envelope{
		EventID:       event.ID,
		EventType:     event.EventType,
		CorrelationID: event.CorrelationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       json.RawMessage(event.Payload),
	}

	return p.producer.PublishEnvelope(TopicForEvent(event.EventType), key, env)
}

// DLQOutboxPublisher отправляет невыдаваемые outbox-сообщения в карантин.
type DLQOutboxPublisher struct {
	producer *Producer
}

// NewDLQOutboxPublisher создаёт publisher для DLQ transactional outbox.
func NewDLQOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &DLQOutboxPublisher{producer: producer}
}

func (p *DLQOutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	data, err := json.Marshal(struct {
		OutboxID      string           `json:"outbox_id"`
		AggregateType string           `json:"aggregate_type"`
		AggregateID   string           `json:"aggregate_id"`
		EventType     domain.EventType `json:"event_type"`
		CorrelationID string           `json:"correlation_id"`
		Payload       json.RawMessage  `json:"payload"`
		QuarantinedAt time.Time        `json:"quarantined_at"`
	}{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		CorrelationID: event.CorrelationID,
		Payload:       json.RawMessage(event.Payload),
		QuarantinedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	return p.producer.PublishRaw(TopicDeadLetterQueue, key, data)
}

var (
	_ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQOutboxPublisher)(nil)
)
