package kafka

import "time"

// EventType определяет тип события продаж.
type EventType string

const (
	// События жизненного цикла продажи.
	EventTypeSaleCompleted EventType = "sale.completed"
	EventTypeSaleCancelled EventType = "sale.cancelled"
	EventTypeSaleRejected  EventType = "sale.rejected"
)

// Topics для Kafka.
const (
	TopicSaleEvents      = "tienda.sale.events"
	TopicDeadLetterQueue = "tienda.dlq" // Dead Letter Queue для failed messages
)

// SaleEvent представляет событие жизненного цикла продажи.
type SaleEvent struct {
	EventType EventType              `json:"event_type"`
	SaleID    string                 `json:"sale_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewSaleEvent создаёт событие продажи с текущей меткой времени.
func NewSaleEvent(eventType EventType, saleID string, metadata map[string]interface{}) SaleEvent {
	return SaleEvent{
		EventType: eventType,
		SaleID:    saleID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
