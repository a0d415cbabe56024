package replenishment

import (
	"context"
	"time"
)

// OrderPlacedEvent is published after a purchase order is stored.
type OrderPlacedEvent struct {
	POID                 string    `json:"po_id"`
	SupplierID           string    `json:"supplier_id"`
	ProductID            string    `json:"product_id"`
	Quantity             int       `json:"quantity"`
	UnitPrice            string    `json:"unit_price"`
	Goal                 Goal      `json:"optimization_goal"`
	Score                float64   `json:"score"`
	OrderDate            time.Time `json:"order_date"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

// ReminderIssuedEvent is published after a supplier reminder is recorded.
type ReminderIssuedEvent struct {
	ReminderID string    `json:"reminder_id"`
	POID       string    `json:"po_id"`
	SupplierID string    `json:"supplier_id"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}

// EventPublisher forwards domain events to downstream consumers.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, evt OrderPlacedEvent) error
	PublishReminderIssued(ctx context.Context, evt ReminderIssuedEvent) error
}

// MetricsRecorder receives domain counters.
type MetricsRecorder interface {
	OrderPlaced(goal Goal)
	ReminderSent()
	DelayedPurchaseOrders(n int)
	ReorderSuggestions(n int)
}
