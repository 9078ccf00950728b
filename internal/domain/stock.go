package domain

import "time"

// StockLevel хранит остаток по одному SKU.
// Инвариант: Available никогда не опускается ниже нуля.
type StockLevel struct {
	SKU       string
	Available int32
	Reserved  int32
	UpdatedAt time.Time
}

// ReservationState описывает состояние резерва по паре (order, sku).
type ReservationState string

const (
	// ReservationStateApplied — резерв применён, остаток уменьшен.
	ReservationStateApplied ReservationState = "applied"
	// ReservationStateReleased — резерв снят, остаток возвращён.
	ReservationStateReleased ReservationState = "released"
)

// Reservation фиксирует применённый резерв. Пара (OrderID, SKU) уникальна:
// повторная доставка того же inventory.reserve не списывает остаток второй раз,
// а release применяется только к существующему ещё не снятому резерву.
type Reservation struct {
	OrderID    string
	SKU        string
	Qty        int32
	State      ReservationState
	EventID    string // Событие, по которому резерв был применён.
	AppliedAt  time.Time
	ReleasedAt time.Time
}

// ReserveOutcome описывает результат попытки резервирования.
type ReserveOutcome string

const (
	// ReserveApplied — остаток уменьшен, резерв записан.
	ReserveApplied ReserveOutcome = "applied"
	// ReserveDuplicate — резерв для (order, sku) уже применён ранее; состояние не изменилось.
	ReserveDuplicate ReserveOutcome = "duplicate"
)

// ReleaseOutcome описывает результат попытки снятия резерва.
type ReleaseOutcome string

const (
	// ReleaseApplied — резерв снят, остаток возвращён.
	ReleaseApplied ReleaseOutcome = "applied"
	// ReleaseDuplicate — резерв уже был снят ранее; состояние не изменилось.
	ReleaseDuplicate ReleaseOutcome = "duplicate"
	// ReleaseNoReservation — резерв для (order, sku) никогда не применялся.
	ReleaseNoReservation ReleaseOutcome = "no_reservation"
)

// Validate проверяет корректность резерва.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if r.SKU == "" {
		errs = append(errs, ErrItemSKURequired)
	}
	if r.Qty <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}

	return errs
}
