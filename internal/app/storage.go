package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// Repositories объединяет хранилища одного сервиса. Конкретный сервис
// использует своё подмножество; остальные поля остаются nil-safe
// in-memory реализациями.
type Repositories struct {
	Orders    domain.OrderRepository
	Payments  domain.PaymentRepository
	Stock     domain.StockRepository
	Outbox    domain.OutboxRepository
	Processed domain.ProcessedEventRepository
	Timeline  domain.TimelineRepository

	store *postgres.Store
}

// NewRepositories выбирает бекенд по конфигурации: Postgres при заданном
// DSN (с накаткой миграций), иначе in-memory. In-memory репозитории
// ставят события в тот же outbox, что имитирует транзакционную запись.
func NewRepositories(ctx context.Context, cfg config.Config, logger *log.Entry) (*Repositories, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is empty, using in-memory storage")
		outbox := memory.NewOutboxRepository()
		return &Repositories{
			Orders:    memory.NewOrderRepository(outbox),
			Payments:  memory.NewPaymentRepository(outbox),
			Stock:     memory.NewStockRepository(),
			Outbox:    outbox,
			Processed: memory.NewProcessedEventRepository(),
			Timeline:  memory.NewTimelineRepository(),
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	logger.Info("postgres storage initialized")

	return &Repositories{
		Orders:    postgres.NewOrderRepository(store),
		Payments:  postgres.NewPaymentRepository(store),
		Stock:     postgres.NewStockRepository(store),
		Outbox:    postgres.NewOutboxRepository(store),
		Processed: postgres.NewProcessedEventRepository(store),
		Timeline:  postgres.NewTimelineRepository(store),
		store:     store,
	}, nil
}

// HealthChecker возвращает проверку хранилища для /healthz.
func (r *Repositories) HealthChecker() healthcheck.Checker {
	if r.store == nil {
		return healthcheck.NewSimpleChecker("storage", func() error { return nil })
	}
	return healthcheck.NewSimpleChecker("storage", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return r.store.Ping(ctx)
	})
}

// Close освобождает соединение с базой, если оно открыто.
func (r *Repositories) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
