package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в рамках саги оформления.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан по событию payment.initiated, оплата не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата подтверждена, заказ в обработке.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку; отмена пользователем больше невозможна.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCompleted — заказ выполнен полностью.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCanceled — заказ отменён (компенсация или явный запрос).
	OrderStatusCanceled OrderStatus = "canceled"
)

// PaymentState описывает состояние оплаты с точки зрения заказа.
type PaymentState string

const (
	// PaymentStatePending — оплата инициирована, подтверждения ещё нет.
	PaymentStatePending PaymentState = "pending"
	// PaymentStatePaid — оплата подтверждена платёжным сервисом.
	PaymentStatePaid PaymentState = "paid"
	// PaymentStateFailed — оплата отклонена или отменена.
	PaymentStateFailed PaymentState = "failed"
	// PaymentStateRefunded — средства возвращены клиенту.
	PaymentStateRefunded PaymentState = "refunded"
)

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	SKU        string
	Qty        int32
	PriceMinor int64
}

// Order агрегирует состояние заказа, его позиции и связь с сагой.
// Заказ создаётся только обработчиком события payment.initiated и дальше
// мутируется исключительно обработчиками саги; физически не удаляется.
type Order struct {
	ID           string
	Number       string
	CustomerID   string
	Status       OrderStatus
	PaymentState PaymentState
	Currency     string
	AmountMinor  int64
	Items        []OrderItem
	PaymentID    string
	SagaID       string
	CreatedVia   string
	CancelReason string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.SKU == "" {
			errs = append(errs, ErrItemSKURequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// IsFinal сообщает, достиг ли заказ терминального статуса.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

// MarkPaid фиксирует подтверждение оплаты: payment state переходит
// pending → paid, статус — pending → processing. Повторное применение
// (redelivery события payment.completed) не меняет состояние.
// Оплаченный заказ никогда не откатывается назад в pending.
func (o *Order) MarkPaid() (bool, error) {
	if o.PaymentState == PaymentStatePaid {
		return false, nil
	}
	if o.PaymentState != PaymentStatePending {
		return false, ErrTerminalState
	}
	if o.Status.IsFinal() {
		return false, ErrTerminalState
	}

	o.PaymentState = PaymentStatePaid
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusProcessing
	}
	return true, nil
}

// MarkPaymentFailed фиксирует отказ оплаты и отменяет заказ.
// Идемпотентен: уже отменённый заказ не меняется.
func (o *Order) MarkPaymentFailed(reason string) (bool, error) {
	if o.Status == OrderStatusCanceled {
		return false, nil
	}
	if o.PaymentState == PaymentStatePaid {
		// payment.failed после подтверждённой оплаты — нарушение порядка событий.
		return false, ErrTerminalState
	}
	if o.Status.IsFinal() {
		return false, ErrTerminalState
	}

	o.PaymentState = PaymentStateFailed
	o.Status = OrderStatusCanceled
	o.CancelReason = reason
	return true, nil
}

// CanCancel сообщает, допускает ли текущий статус отмену по явному запросу.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// Cancel отменяет заказ по явному запросу пользователя или администратора.
// Для уже отменённого заказа — no-op; для отгруженного/завершённого — ошибка.
func (o *Order) Cancel(reason string) (bool, error) {
	if o.Status == OrderStatusCanceled {
		return false, nil
	}
	if !o.CanCancel() {
		return false, ErrCancelNotAllowed
	}

	o.Status = OrderStatusCanceled
	o.CancelReason = reason
	return true, nil
}

// Complete переводит заказ processing → completed.
func (o *Order) Complete() (bool, error) {
	if o.Status == OrderStatusCompleted {
		return false, nil
	}
	if o.Status != OrderStatusProcessing && o.Status != OrderStatusShipped {
		return false, ErrCompleteNotAllowed
	}

	o.Status = OrderStatusCompleted
	return true, nil
}
