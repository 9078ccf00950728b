package domain

// EventType определяет тип события саги. Множество типов закрыто:
// на каждый тип приходится своя типизированная структура payload.
type EventType string

const (
	// EventTypePaymentInitiated — платёж создан, сага оформления запущена.
	EventTypePaymentInitiated EventType = "payment.initiated"
	// EventTypePaymentCompleted — провайдер подтвердил списание.
	EventTypePaymentCompleted EventType = "payment.completed"
	// EventTypePaymentFailed — платёж отклонён или истёк.
	EventTypePaymentFailed EventType = "payment.failed"

	// EventTypeInventoryReserve — команда склада: зарезервировать позицию заказа.
	EventTypeInventoryReserve EventType = "inventory.reserve"
	// EventTypeInventoryRelease — команда склада: снять резерв (компенсация).
	EventTypeInventoryRelease EventType = "inventory.release"
	// EventTypeInventoryRejected — склад отказал в резерве, требуется отмена заказа.
	EventTypeInventoryRejected EventType = "inventory.rejected"

	// EventTypeOrderCreated — заказ создан участником саги.
	EventTypeOrderCreated EventType = "order.created"
	// EventTypeOrderStatusChanged — статус заказа изменился.
	EventTypeOrderStatusChanged EventType = "order.status.changed"
	// EventTypeOrderCanceled — заказ отменён.
	EventTypeOrderCanceled EventType = "order.canceled"
	// EventTypeOrderCompleted — заказ завершён.
	EventTypeOrderCompleted EventType = "order.completed"
)

// EventLineItem — позиция заказа в составе события.
type EventLineItem struct {
	SKU        string `json:"sku"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// PaymentInitiated несёт черновик заказа: по нему order-сервис создаёт
// запись заказа, а склад получает команды резервирования.
type PaymentInitiated struct {
	PaymentID   string          `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Method      string          `json:"method"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Items       []EventLineItem `json:"items"`
}

// Validate проверяет обязательные поля события.
func (e PaymentInitiated) Validate() error {
	switch {
	case e.PaymentID == "":
		return ErrSagaIDRequired
	case e.OrderID == "":
		return ErrOrderIDRequired
	case e.CustomerID == "":
		return ErrCustomerRequired
	case e.Currency == "":
		return ErrCurrencyRequired
	case e.AmountMinor < 0:
		return ErrAmountNegative
	case len(e.Items) == 0:
		return ErrItemsRequired
	}
	for _, item := range e.Items {
		if item.SKU == "" {
			return ErrItemSKURequired
		}
		if item.Qty <= 0 {
			return ErrItemQtyInvalid
		}
	}
	return nil
}

// PaymentCompleted подтверждает списание средств по заказу.
type PaymentCompleted struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount_minor"`
	ChargeID    string `json:"charge_id,omitempty"`
}

// Validate проверяет обязательные поля события.
func (e PaymentCompleted) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// PaymentFailed сообщает об отказе оплаты и причине.
type PaymentFailed struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Reason    string `json:"reason,omitempty"`
}

// Validate проверяет обязательные поля события.
func (e PaymentFailed) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// InventoryReserve — команда резервирования одной позиции.
// Ключ партиционирования — SKU: все reserve/release по одному товару
// обрабатываются в порядке публикации.
type InventoryReserve struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int32  `json:"qty"`
}

// Validate проверяет обязательные поля команды.
func (e InventoryReserve) Validate() error {
	switch {
	case e.OrderID == "":
		return ErrOrderIDRequired
	case e.SKU == "":
		return ErrItemSKURequired
	case e.Qty <= 0:
		return ErrItemQtyInvalid
	}
	return nil
}

// InventoryRelease — команда снятия резерва (компенсация).
type InventoryRelease struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int32  `json:"qty"`
}

// Validate проверяет обязательные поля команды.
func (e InventoryRelease) Validate() error {
	switch {
	case e.OrderID == "":
		return ErrOrderIDRequired
	case e.SKU == "":
		return ErrItemSKURequired
	}
	return nil
}

// InventoryRejected — компенсирующее событие склада: резерв невозможен.
type InventoryRejected struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Reason  string `json:"reason,omitempty"`
}

// Validate проверяет обязательные поля события.
func (e InventoryRejected) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// OrderCreated публикуется для внешних подписчиков (нотификации, websocket).
type OrderCreated struct {
	OrderID     string `json:"order_id"`
	Number      string `json:"number"`
	CustomerID  string `json:"customer_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// Validate проверяет обязательные поля события.
func (e OrderCreated) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// OrderStatusChanged публикуется при каждом переходе статуса заказа.
type OrderStatusChanged struct {
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	PaymentState string `json:"payment_state"`
	Reason       string `json:"reason,omitempty"`
}

// Validate проверяет обязательные поля события.
func (e OrderStatusChanged) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// OrderCanceled публикуется при отмене заказа с человекочитаемой причиной.
type OrderCanceled struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason,omitempty"`
}

// Validate проверяет обязательные поля события.
func (e OrderCanceled) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}

// OrderCompleted публикуется при завершении заказа.
type OrderCompleted struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

// Validate проверяет обязательные поля события.
func (e OrderCompleted) Validate() error {
	if e.OrderID == "" {
		return ErrOrderIDRequired
	}
	return nil
}
