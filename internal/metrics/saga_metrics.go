package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics содержит метрики хореографической саги заказа.
type SagaMetrics struct {
	// Счётчики событий по consumer-группам
	eventsConsumed *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec

	// Складские резервы по результату (applied/duplicate/rejected/released)
	reservations *prometheus.CounterVec

	// Платежи по терминальному статусу и webhook по результату проверки
	payments *prometheus.CounterVec
	webhooks *prometheus.CounterVec

	// Гистограмма обработки события
	handleDuration *prometheus.HistogramVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge активных (не терминальных) саг
	activeSagas prometheus.Gauge
}

// NewSagaMetrics создаёт новый экземпляр метрик саги.
func NewSagaMetrics() *SagaMetrics {
	return newSagaMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSagaMetricsWithRegisterer(registerer prometheus.Registerer) *SagaMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SagaMetrics{
		eventsConsumed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_saga_events_consumed_total",
			Help: "Total number of saga events consumed grouped by consumer and event type",
		}, []string{"consumer", "event_type"}),
		eventsDropped: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_saga_events_dropped_total",
			Help: "Total number of saga events dropped as duplicates or no-ops",
		}, []string{"consumer", "reason"}),
		reservations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_stock_reservations_total",
			Help: "Total number of stock reservation commands grouped by result",
		}, []string{"result"}),
		payments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payments_total",
			Help: "Total number of payments reaching a terminal status",
		}, []string{"status"}),
		webhooks: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payment_webhooks_total",
			Help: "Total number of payment provider webhooks grouped by result",
		}, []string{"result"}),
		handleDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_saga_handle_duration_seconds",
			Help:    "Duration of saga event handling in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"consumer", "event_type"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeSagas: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shop_active_sagas",
			Help: "Number of currently active order sagas",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordEventConsumed увеличивает счётчик обработанных событий.
func (m *SagaMetrics) RecordEventConsumed(consumer, eventType string) {
	m.eventsConsumed.WithLabelValues(consumer, eventType).Inc()
}

// RecordEventDropped увеличивает счётчик отброшенных событий (дубль, no-op).
func (m *SagaMetrics) RecordEventDropped(consumer, reason string) {
	m.eventsDropped.WithLabelValues(consumer, reason).Inc()
}

// RecordReservation увеличивает счётчик складских операций по результату.
func (m *SagaMetrics) RecordReservation(result string) {
	m.reservations.WithLabelValues(result).Inc()
}

// RecordPayment увеличивает счётчик платежей, достигших терминального статуса.
func (m *SagaMetrics) RecordPayment(status string) {
	m.payments.WithLabelValues(status).Inc()
}

// RecordWebhook увеличивает счётчик webhook по результату проверки подписи.
func (m *SagaMetrics) RecordWebhook(result string) {
	m.webhooks.WithLabelValues(result).Inc()
}

// RecordHandleDuration записывает время обработки события.
func (m *SagaMetrics) RecordHandleDuration(consumer, eventType string, duration time.Duration) {
	m.handleDuration.WithLabelValues(consumer, eventType).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *SagaMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SagaMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordSagaStarted увеличивает gauge активных саг.
func (m *SagaMetrics) RecordSagaStarted() {
	m.activeSagas.Inc()
}

// RecordSagaFinished уменьшает gauge активных саг.
func (m *SagaMetrics) RecordSagaFinished() {
	m.activeSagas.Dec()
}
