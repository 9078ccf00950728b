package domain

import "time"

// ProcessedEvent хранит отметку об обработанном событии для одного consumer.
// При at-least-once доставке брокер может передать сообщение повторно;
// отметка позволяет подтвердить дубль без повторных побочных эффектов.
type ProcessedEvent struct {
	Consumer    string
	EventID     string
	TTLAt       time.Time
	ProcessedAt time.Time
}
