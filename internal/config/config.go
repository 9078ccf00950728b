package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — настройки одного сервиса саги. Все сервисы читают один и тот же
// набор ключей; неиспользуемые секции просто игнорируются.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	// PostgresDSN пустой — сервис работает на in-memory хранилище.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// KafkaBrokers пустой — события не публикуются и не потребляются
	// (режим локальной разработки).
	KafkaBrokers []string `mapstructure:"kafka_brokers"`

	Outbox  OutboxConfig  `mapstructure:"outbox"`
	Payment PaymentConfig `mapstructure:"payment"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// OutboxConfig — параметры outbox worker.
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// PaymentConfig — параметры платёжного сервиса.
type PaymentConfig struct {
	WebhookSecret string        `mapstructure:"webhook_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Load читает конфигурацию: значения по умолчанию, затем необязательный
// yaml-файл (путь в SHOP_CONFIG), затем переменные окружения с префиксом
// SHOP (SHOP_HTTP_ADDR, SHOP_POSTGRES_DSN, SHOP_PAYMENT_WEBHOOK_SECRET...).
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 3)
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.session_ttl", 30*time.Minute)
	v.SetDefault("payment.sweep_interval", time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Brokers из окружения приходят одной строкой через запятую.
	if len(cfg.KafkaBrokers) == 1 && strings.Contains(cfg.KafkaBrokers[0], ",") {
		cfg.KafkaBrokers = strings.Split(cfg.KafkaBrokers[0], ",")
	}
	for i := range cfg.KafkaBrokers {
		cfg.KafkaBrokers[i] = strings.TrimSpace(cfg.KafkaBrokers[i])
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("metrics_addr is required")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.max_attempts must be positive")
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox.poll_interval must be positive")
	}
	return nil
}
