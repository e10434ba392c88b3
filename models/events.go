package models

import "time"

const (
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is published on the order event bus.
type OrderEvent struct {
	EventType     string        `json:"event_type"`
	OrderNumber   string        `json:"order_number"`
	CustomerEmail string        `json:"customer_email"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	CatalogItems  []CatalogLine `json:"catalog_items,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CatalogLine lets inventory consumers decrement stock; custom items are
// never included.
type CatalogLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ReconciliationTask asks an operator (or the reconciliation worker) to look
// at an order whose payment state is not settled.
type ReconciliationTask struct {
	OrderNumber string    `json:"order_number"`
	PaymentID   string    `json:"payment_id"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
