package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/config"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/health"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:    ":0",
		MetricsAddr: ":0",
		Outbox: config.OutboxConfig{
			PollInterval: time.Second,
			BatchSize:    10,
			MaxAttempts:  3,
		},
	}
}

func TestNewRepositories_MemoryMode(t *testing.T) {
	logger := log.WithField("component", "test")

	repos, err := NewRepositories(context.Background(), testConfig(), logger)
	if err != nil {
		t.Fatalf("new repositories: %v", err)
	}
	defer repos.Close()

	if repos.Orders == nil || repos.Payments == nil || repos.Stock == nil ||
		repos.Outbox == nil || repos.Processed == nil || repos.Timeline == nil {
		t.Fatal("all repositories must be initialized in memory mode")
	}

	// In-memory репозитории пишут события в общий outbox.
	order := domain.Order{
		ID:           "order-1",
		Number:       "ORD-1",
		CustomerID:   "customer-1",
		Status:       domain.OrderStatusPending,
		PaymentState: domain.PaymentStatePending,
		Currency:     "RUB",
		AmountMinor:  100,
		Items:        []domain.OrderItem{{SKU: "sku-1", Qty: 1, PriceMinor: 100}},
	}
	events := []domain.OutboxMessage{{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     domain.EventTypeOrderCreated,
		Payload:       []byte(`{}`),
	}}
	if err := repos.Orders.Create(order, events); err != nil {
		t.Fatalf("create order: %v", err)
	}

	pending, err := repos.Outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected order event in shared outbox, got %d", len(pending))
	}
}

func TestRepositories_HealthCheckerMemory(t *testing.T) {
	logger := log.WithField("component", "test")

	repos, err := NewRepositories(context.Background(), testConfig(), logger)
	if err != nil {
		t.Fatalf("new repositories: %v", err)
	}
	defer repos.Close()

	check := repos.HealthChecker().Check()
	if check.Status != health.StatusHealthy {
		t.Fatalf("memory storage must be healthy, got %s", check.Status)
	}
}

func TestNewMessaging_DisabledWithoutBrokers(t *testing.T) {
	logger := log.WithField("component", "test")

	messaging, err := NewMessaging(testConfig(), logger)
	if err != nil {
		t.Fatalf("new messaging: %v", err)
	}

	if messaging.Producer != nil || messaging.Publisher != nil {
		t.Fatal("messaging must be disabled without brokers")
	}
	if worker := messaging.NewOutboxWorker(testConfig(), nil, logger); worker != nil {
		t.Fatal("outbox worker must not be created without publisher")
	}

	consumer, err := messaging.NewConsumer(testConfig(), "group", nil, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if consumer != nil {
		t.Fatal("consumer must not be created without brokers")
	}

	// Close без producer — no-op.
	messaging.Close(logger)
}

func TestConfigureLogging(t *testing.T) {
	originalLevel := log.GetLevel()
	defer log.SetLevel(originalLevel)

	cfg := testConfig()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"
	ConfigureLogging(cfg)
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	cfg.LogLevel = "bogus"
	ConfigureLogging(cfg)
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("unknown level must fall back to info, got %s", log.GetLevel())
	}
}
