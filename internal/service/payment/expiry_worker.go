package payment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	defaultExpirySweepInterval = 1 * time.Minute
	defaultSessionTTL          = 30 * time.Minute
	defaultExpiryBatchSize     = 100

	// ExpiryReason — причина отказа для истёкших checkout-сессий.
	ExpiryReason = "payment session expired"
)

// ExpiryWorkerOptions задаёт параметры worker истечения сессий.
type ExpiryWorkerOptions struct {
	Logger        *log.Entry
	SweepInterval time.Duration
	SessionTTL    time.Duration
	BatchSize     int
}

// ExpiryOption настраивает ExpiryWorker.
type ExpiryOption func(*ExpiryWorkerOptions)

// WithExpiryLogger задаёт logger для воркера.
func WithExpiryLogger(logger *log.Entry) ExpiryOption {
	return func(opts *ExpiryWorkerOptions) {
		opts.Logger = logger
	}
}

// WithSweepInterval задаёт частоту обхода зависших платежей.
func WithSweepInterval(interval time.Duration) ExpiryOption {
	return func(opts *ExpiryWorkerOptions) {
		opts.SweepInterval = interval
	}
}

// WithSessionTTL задаёт время жизни незавершённой checkout-сессии.
func WithSessionTTL(ttl time.Duration) ExpiryOption {
	return func(opts *ExpiryWorkerOptions) {
		opts.SessionTTL = ttl
	}
}

// WithExpiryBatchSize задаёт размер батча за один обход.
func WithExpiryBatchSize(batchSize int) ExpiryOption {
	return func(opts *ExpiryWorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// ExpiryWorker гасит платежи, застрявшие в pending/processing дольше TTL:
// переводит их в failed и публикует payment.failed, чтобы сага
// компенсировалась, а не висела вечно без webhook от провайдера.
type ExpiryWorker struct {
	service       *Service
	payments      domain.PaymentRepository
	logger        *log.Entry
	sweepInterval time.Duration
	sessionTTL    time.Duration
	batchSize     int
}

// NewExpiryWorker создаёт worker истечения checkout-сессий.
func NewExpiryWorker(service *Service, payments domain.PaymentRepository, options ...ExpiryOption) *ExpiryWorker {
	opts := ExpiryWorkerOptions{
		SweepInterval: defaultExpirySweepInterval,
		SessionTTL:    defaultSessionTTL,
		BatchSize:     defaultExpiryBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "payment-expiry-worker")
	}

	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultExpirySweepInterval
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultExpiryBatchSize
	}

	return &ExpiryWorker{
		service:       service,
		payments:      payments,
		logger:        logger,
		sweepInterval: opts.SweepInterval,
		sessionTTL:    opts.SessionTTL,
		batchSize:     opts.BatchSize,
	}
}

// Run запускает периодический обход до отмены ctx.
func (w *ExpiryWorker) Run(ctx context.Context) {
	if w.service == nil || w.payments == nil {
		w.logger.Warn("payment expiry worker is disabled: service or repo is nil")
		return
	}

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один обход зависших платежей.
// Возвращает число погашенных платежей.
func (w *ExpiryWorker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	cutoff := time.Now().UTC().Add(-w.sessionTTL)
	expired := 0

	for {
		if ctx.Err() != nil {
			return expired
		}

		stale, err := w.payments.ListStale(cutoff, w.batchSize)
		if err != nil {
			w.logger.WithError(err).Warn("failed to list stale payments")
			return expired
		}
		if len(stale) == 0 {
			return expired
		}

		batchExpired := 0
		for _, payment := range stale {
			if err := w.service.failPayment(payment, ExpiryReason); err != nil {
				// Гонка с webhook: платёж успел завершиться между выборкой
				// и отказом. Пропускаем, остальные гасим.
				if domain.IsTerminalState(err) || domain.IsVersionConflict(err) {
					w.logger.WithField("payment_id", payment.ID).Debug("stale payment resolved concurrently")
					continue
				}
				w.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to expire payment")
				continue
			}
			expired++
			batchExpired++
			w.logger.WithFields(log.Fields{
				"payment_id": payment.ID,
				"order_id":   payment.OrderID,
			}).Info("stale payment expired")
		}

		// Если батч не продвинулся, следующая выборка вернёт те же записи.
		if len(stale) < w.batchSize || batchExpired == 0 {
			return expired
		}
	}
}
