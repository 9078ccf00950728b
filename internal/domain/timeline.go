package domain

import "time"

// TimelineEvent — одна запись истории жизненного цикла заказа.
// Лента append-only: сага только добавляет записи, аудит читает их целиком.
type TimelineEvent struct {
	ID       string
	OrderID  string
	Type     EventType
	Reason   string
	Occurred time.Time
}
