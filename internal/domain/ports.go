package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
// Мутации принимают список outbox-сообщений: реализация обязана
// сохранить заказ и события атомарно (publish-after-commit).
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с его событиями.
	// Возвращает ErrOrderExists, если заказ с таким ID уже создан.
	Create(order Order, events []OutboxMessage) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновление с учётом optimistic locking и событиями.
	Save(order Order, events []OutboxMessage) error
}

// PaymentRepository описывает требования к хранилищу платежей.
type PaymentRepository interface {
	// Create сохраняет новый платёж вместе с его событиями.
	Create(payment Payment, events []OutboxMessage) error
	// Get возвращает платёж по идентификатору или ErrPaymentNotFound.
	Get(id string) (Payment, error)
	// GetByOrderID возвращает платёж по заказу (связь 1:1).
	GetByOrderID(orderID string) (Payment, error)
	// GetBySessionID возвращает платёж по checkout-сессии провайдера.
	GetBySessionID(sessionID string) (Payment, error)
	// Save применяет обновление с учётом optimistic locking и событиями.
	Save(payment Payment, events []OutboxMessage) error
	// ListStale возвращает незавершённые платежи, созданные раньше before.
	ListStale(before time.Time, limit int) ([]Payment, error)
}

// StockRepository описывает складской реестр остатков. Это единственное
// место системы с настоящей конкуренцией за запись: проверка и списание
// остатка обязаны выполняться одной атомарной условной операцией.
type StockRepository interface {
	// Get возвращает остаток по SKU или ErrStockNotFound.
	Get(sku string) (StockLevel, error)
	// Upsert создаёт или заменяет остаток (административное пополнение).
	Upsert(level StockLevel) error
	// Reserve атомарно списывает qty, если available >= qty, и фиксирует
	// резерв (orderID, sku). Повтор для той же пары — ReserveDuplicate
	// без изменения остатка. Нехватка — ErrInsufficientStock без изменений.
	Reserve(orderID, sku string, qty int32, eventID string) (ReserveOutcome, error)
	// Release атомарно возвращает остаток применённого резерва.
	// Снятый ранее резерв — ReleaseDuplicate, отсутствующий — ReleaseNoReservation.
	Release(orderID, sku string) (ReleaseOutcome, error)
	// ListReservations возвращает резервы заказа.
	ListReservations(orderID string) ([]Reservation, error)
}

// OutboxMessage хранит событие саги до публикации в брокер.
// AggregateID служит ключом партиционирования: order id для событий
// платежей/заказов, SKU для складских команд.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     EventType
	CorrelationID string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// TimelineRepository хранит события жизненного цикла заказа для аудита.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// ProcessedEventRepository хранит отметки об обработанных событиях
// по паре (consumer, event id). Быстрый путь для отбрасывания дублей;
// авторитетная защита от повторного применения — идемпотентные
// переходы состояния самих агрегатов.
type ProcessedEventRepository interface {
	// MarkProcessed фиксирует обработку события. Возвращает false,
	// если событие уже было отмечено ранее.
	MarkProcessed(consumer, eventID string, ttlAt time.Time) (bool, error)
	// Seen сообщает, обрабатывалось ли событие данным consumer.
	Seen(consumer, eventID string) (bool, error)
	// DeleteExpired удаляет записи с истёкшим TTL порциями limit.
	DeleteExpired(before time.Time, limit int) (int, error)
}
