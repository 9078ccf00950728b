package domain

import "time"

// PaymentStatus описывает состояние платежа в платёжном сервисе.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан, внешняя checkout-сессия не завершена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusProcessing — checkout-сессия завершена, ждём подтверждения списания.
	PaymentStatusProcessing PaymentStatus = "processing"
	// PaymentStatusCompleted — провайдер подтвердил списание. Терминальный статус.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — провайдер отклонил платёж либо сессия истекла. Терминальный статус.
	PaymentStatusFailed PaymentStatus = "failed"
)

// PaymentMethod описывает способ оплаты.
type PaymentMethod string

const (
	// PaymentMethodCard — онлайн-оплата, переходы управляются webhook провайдера.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCashOnDelivery — офлайн-оплата, платёж подтверждается без внешнего callback.
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Payment описывает платёж, привязанный к заказу. Создаётся первым в саге:
// его SagaID становится correlation id всех последующих событий.
// Владелец записи — только платёжный сервис; остальные участники
// узнают о платеже исключительно из событий.
type Payment struct {
	ID          string
	OrderID     string
	SagaID      string
	Method      PaymentMethod
	Status      PaymentStatus
	AmountMinor int64
	Currency    string
	SessionID   string // Идентификатор checkout-сессии у провайдера.
	ChargeID    string // Идентификатор списания; пустой до подтверждения.
	FailReason  string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.SagaID == "" {
		errs = append(errs, ErrSagaIDRequired)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}
	switch p.Method {
	case PaymentMethodCard, PaymentMethodCashOnDelivery:
	default:
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	return errs
}

// IsTerminal сообщает, достиг ли платёж терминального статуса.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// MarkProcessing применяет сигнал "checkout session completed":
// pending → processing. Повтор для processing — no-op,
// для терминального статуса — ErrTerminalState.
func (p *Payment) MarkProcessing() (bool, error) {
	switch p.Status {
	case PaymentStatusProcessing:
		return false, nil
	case PaymentStatusPending:
		p.Status = PaymentStatusProcessing
		return true, nil
	default:
		return false, ErrTerminalState
	}
}

// MarkCompleted применяет сигнал "payment succeeded": processing → completed.
// Для офлайн-методов допускается прямой переход pending → completed.
// Повтор для completed — no-op (защита от дубля webhook),
// для failed — ErrTerminalState.
func (p *Payment) MarkCompleted(chargeID string) (bool, error) {
	switch p.Status {
	case PaymentStatusCompleted:
		return false, nil
	case PaymentStatusProcessing:
	case PaymentStatusPending:
		if p.Method != PaymentMethodCashOnDelivery {
			return false, ErrPaymentNotProcessing
		}
	default:
		return false, ErrTerminalState
	}

	p.Status = PaymentStatusCompleted
	if chargeID != "" {
		p.ChargeID = chargeID
	}
	return true, nil
}

// MarkFailed применяет отказ провайдера либо истечение сессии.
// Повтор для failed — no-op, для completed — ErrTerminalState.
func (p *Payment) MarkFailed(reason string) (bool, error) {
	switch p.Status {
	case PaymentStatusFailed:
		return false, nil
	case PaymentStatusPending, PaymentStatusProcessing:
		p.Status = PaymentStatusFailed
		p.FailReason = reason
		return true, nil
	default:
		return false, ErrTerminalState
	}
}
