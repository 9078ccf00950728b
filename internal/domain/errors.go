package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка отсутствующего SKU в позиции.
	ErrItemSKURequired = errors.New("item sku is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("payment method is not supported")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора саги.
	ErrSagaIDRequired = errors.New("saga_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при попытке повторно создать заказ с тем же ID.
	// Для обработчика payment.initiated это признак дубля события.
	ErrOrderExists = errors.New("order already exists")
	// ErrVersionConflict сигнализирует о конфликте optimistic locking при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrStockNotFound возвращается для неизвестного SKU.
	ErrStockNotFound = errors.New("stock level not found")
	// ErrOutboxMessageNotFound возвращается при попытке пометить несуществующее outbox-сообщение.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")

	// ErrInsufficientStock — бизнес-отказ склада: остатка не хватает.
	// Не повторяется, а превращается в компенсирующее событие.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateEvent — событие уже было применено; подтверждаем без изменений.
	ErrDuplicateEvent = errors.New("event already processed")
	// ErrInvalidSignature — подпись webhook не прошла проверку.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrTerminalState — попытка перехода из терминального статуса.
	// Обрабатывается как no-op и никогда не роняет consumer.
	ErrTerminalState = errors.New("entity is in terminal state")
	// ErrPaymentNotProcessing — подтверждение списания пришло до завершения checkout-сессии.
	ErrPaymentNotProcessing = errors.New("payment is not in processing state")
	// ErrCancelNotAllowed — заказ уже отгружен или завершён, отмена невозможна.
	ErrCancelNotAllowed = errors.New("order can no longer be canceled")
	// ErrCompleteNotAllowed — заказ нельзя завершить из текущего статуса.
	ErrCompleteNotAllowed = errors.New("order cannot be completed from current status")
	// ErrUnknownEventType — событие с типом вне закрытого множества вариантов.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsInsufficientStock проверяет бизнес-отказ склада.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsTerminalState проверяет попытку перехода из терминального статуса.
func IsTerminalState(err error) bool {
	return errors.Is(err, ErrTerminalState)
}

// IsRetryable классифицирует ошибку обработчика: бизнес-отказы и дубли
// не повторяются (offset подтверждается), всё остальное считается
// временной инфраструктурной ошибкой и ведёт к redelivery.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrDuplicateEvent),
		errors.Is(err, ErrTerminalState),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrUnknownEventType),
		errors.Is(err, ErrOrderExists),
		errors.Is(err, ErrCancelNotAllowed),
		errors.Is(err, ErrCompleteNotAllowed):
		return false
	default:
		return true
	}
}
