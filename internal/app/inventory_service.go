package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/inventory"
)

// RunInventoryService запускает складской сервис: consumer команд
// резервирования, outbox worker для inventory.rejected и служебный HTTP API
// остатков.
func RunInventoryService(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "inventory-app")

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
	ledger := inventory.NewLedger(repos.Stock, repos.Outbox, sagaMetrics)

	consumer, err := messaging.NewConsumer(cfg, inventory.ConsumerName,
		[]string{kafka.TopicInventoryCommands},
		ledger.Handler(),
	)
	if err != nil {
		return fmt.Errorf("create inventory consumer: %w", err)
	}
	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start inventory consumer: %w", err)
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

	router := gin.New()
	router.Use(gin.Recovery())
	registerStockRoutes(router, repos.Stock)

	return serveUntilDone(ctx, cfg, logger, router, map[string]healthcheck.Checker{
		"storage": repos.HealthChecker(),
	})
}

// registerStockRoutes вешает служебные маршруты склада: чтение остатка и
// загрузка стартовых уровней.
func registerStockRoutes(router gin.IRouter, stock domain.StockRepository) {
	api := router.Group("/api/v1")

	api.GET("/stock/:sku", func(c *gin.Context) {
		level, err := stock.Get(c.Param("sku"))
		if err != nil {
			c.JSON(404, gin.H{"error": "sku not found"})
			return
		}
		c.JSON(200, gin.H{
			"sku":       level.SKU,
			"available": level.Available,
			"reserved":  level.Reserved,
		})
	})

	api.PUT("/stock/:sku", func(c *gin.Context) {
		var req struct {
			Available int32 `json:"available"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Available < 0 {
			c.JSON(400, gin.H{"error": "available must be a non-negative integer"})
			return
		}
		if err := stock.Upsert(domain.StockLevel{SKU: c.Param("sku"), Available: req.Available}); err != nil {
			c.JSON(500, gin.H{"error": "failed to upsert stock level"})
			return
		}
		c.JSON(200, gin.H{"sku": c.Param("sku"), "available": req.Available})
	})
}
