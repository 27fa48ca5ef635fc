package models

import (
	"encoding/json"
	"time"
)

// EventType names every event this service consumes or publishes.
type EventType string

const (
	// Inbound from the cart service.
	EventTypeCheckoutCompleted EventType = "checkout.completed"

	// Self-addressed lifecycle chain: published and consumed by this service.
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderProcessed EventType = "order.processed"
	EventTypeOrderShipped   EventType = "order.shipped"

	// Inbound from the inventory service when a reservation fails.
	EventTypeStockUpdateFailed EventType = "stock.update-failed"

	// Outbound to the inventory service.
	EventTypeStockReservationRequested EventType = "stock.reservation-requested"
	EventTypeOrderCancelled            EventType = "order.cancelled"
)

// Envelope is the wire frame for every event. The ID is the dedupe key for
// at-least-once delivery.
type Envelope struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutCompletedEvent arrives from the cart service and triggers order creation.
type CheckoutCompletedEvent struct {
	CartID        string         `json:"cart_id"`
	UserID        string         `json:"user_id"`
	PaymentMethod string         `json:"payment_method"`
	Items         []CheckoutItem `json:"items"`
}

// OrderCreatedEvent starts the processing stage of the lifecycle chain.
type OrderCreatedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// OrderProcessedEvent starts the shipping stage.
type OrderProcessedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// OrderShippedEvent starts the delivery stage.
type OrderShippedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// StockUpdateFailedEvent arrives when the inventory service could not reserve
// stock for an already created order; it triggers compensation.
type StockUpdateFailedEvent struct {
	OrderID           string         `json:"order_id"`
	UserID            string         `json:"user_id"`
	ProductQuantities map[string]int `json:"product_quantities"`
	ErrorMessage      string         `json:"error_message"`
}

// StockReservationRequestedEvent asks the inventory service to reserve stock
// for a freshly created order.
type StockReservationRequestedEvent struct {
	CartID            string         `json:"cart_id"`
	UserID            string         `json:"user_id"`
	OrderID           string         `json:"order_id"`
	ProductQuantities map[string]int `json:"product_quantities"`
}

type CancelledItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderCancelledEvent tells the inventory service to restore stock.
type OrderCancelledEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Items       []CancelledItem `json:"items"`
	CancelledAt time.Time       `json:"cancelled_at"`
}

// ProcessedEvent is the dedupe record kept for every consumed envelope.
type ProcessedEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
