package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
)

// Messaging объединяет Kafka-зависимости сервиса. При пустом списке
// брокеров все поля nil: сервис работает без шины (локальная разработка),
// outbox копит события до появления publisher.
type Messaging struct {
	Producer     *kafka.Producer
	Publisher    domain.OutboxPublisher
	DLQPublisher domain.OutboxPublisher
}

// NewMessaging создаёт producer и оба publisher поверх него.
func NewMessaging(cfg config.Config, logger *log.Entry) (*Messaging, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("kafka brokers are not configured, events will stay in outbox")
		return &Messaging{}, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	return &Messaging{
		Producer:     producer,
		Publisher:    kafka.NewOutboxPublisher(producer),
		DLQPublisher: kafka.NewDLQOutboxPublisher(producer),
	}, nil
}

// NewOutboxWorker собирает outbox worker сервиса. Возвращает nil, если
// publisher отсутствует.
func (m *Messaging) NewOutboxWorker(cfg config.Config, repo domain.OutboxRepository, logger *log.Entry) *outbox.Worker {
	if m.Publisher == nil {
		return nil
	}
	return outbox.NewWorker(repo, m.Publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(m.DLQPublisher),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
	)
}

// NewConsumer собирает consumer group с DLQ-карантином poison messages.
func (m *Messaging) NewConsumer(cfg config.Config, groupID string, topics []string, handler kafka.EnvelopeHandler) (*kafka.Consumer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	return kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		groupID,
		topics,
		kafka.EnvelopeMessageHandler(handler),
		m.Producer,
		cfg.Outbox.MaxAttempts,
	)
}

// Close закрывает producer, если он был создан.
func (m *Messaging) Close(logger *log.Entry) {
	if m == nil || m.Producer == nil {
		return
	}
	if err := m.Producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
