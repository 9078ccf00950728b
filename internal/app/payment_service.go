package app

import (
	"context"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
)

// RunPaymentService запускает платёжный сервис: HTTP API оформления и
// webhook провайдера, outbox worker и worker истечения checkout-сессий.
// Consumer у платёжного сервиса нет: он только порождает события саги.
func RunPaymentService(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "payment-app")

	if cfg.Payment.WebhookSecret == "" {
		logger.Warn("payment webhook secret is empty, provider callbacks will be rejected")
	}

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
	service := payment.NewService(repos.Payments, sagaMetrics)
	webhook := payment.NewWebhookHandler(service, cfg.Payment.WebhookSecret, sagaMetrics)

	if worker := messaging.NewOutboxWorker(cfg, repos.Outbox, logger); worker != nil {
		go worker.Run(ctx)
	}
	go payment.NewExpiryWorker(service, repos.Payments,
		payment.WithSessionTTL(cfg.Payment.SessionTTL),
		payment.WithSweepInterval(cfg.Payment.SweepInterval),
	).Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	payment.NewHTTPHandler(service, webhook).Register(router)

	return serveUntilDone(ctx, cfg, logger, router, map[string]healthcheck.Checker{
		"storage": repos.HealthChecker(),
	})
}
