package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

// RunOrderService запускает заказной сервис: consumer платёжных и складских
// событий, HTTP API чтения/отмены/завершения, outbox worker и очистку
// реестра идемпотентности.
func RunOrderService(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "order-app")

	repos, err := NewRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	messaging, err := NewMessaging(cfg, logger)
	if err != nil {
		return err
	}
	defer messaging.Close(logger)

	sagaMetrics := metrics.NewSagaMetrics()
	service := order.NewService(repos.Orders, repos.Timeline, repos.Processed, sagaMetrics)

	consumer, err := messaging.NewConsumer(cfg, order.ConsumerName,
		[]string{kafka.TopicPaymentEvents, kafka.TopicInventoryEvents},
		service.Handler(),
	)
	if err != nil {
		return fmt.Errorf("create order consumer: %w", err)
	}
	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start order consumer: %w", err)
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Warn("failed to stop consumer")
			}
		}()
	}

	if worker := messaging.NewOutboxWorker(cfg, repos.Outbox, logger); worker != nil {
		go worker.Run(ctx)
	}
	go idempotency.NewCleanupWorker(repos.Processed).Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	order.NewHTTPHandler(service).Register(router)

	return serveUntilDone(ctx, cfg, logger, router, map[string]healthcheck.Checker{
		"storage": repos.HealthChecker(),
	})
}
