package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OrderStatus is the fulfilment status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus is the payment status mirrored onto an order. "completed" is
// only ever written once the gateway reports the money as captured.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// LineItemKind tags where a line item came from. Only catalog items reference
// a product and can drive inventory.
type LineItemKind string

const (
	LineItemCatalog LineItemKind = "catalog"
	LineItemCustom  LineItemKind = "custom"
)

type Customer struct {
	Name  string `gorm:"type:varchar(128);not null" json:"name" binding:"required"`
	Email string `gorm:"type:varchar(256);not null;index" json:"email" binding:"required,email"`
	Phone string `gorm:"type:varchar(32)" json:"phone,omitempty" binding:"omitempty,e164"`
}

type Address struct {
	Line1      string `gorm:"type:varchar(256);not null" json:"line1" binding:"required"`
	Line2      string `gorm:"type:varchar(256)" json:"line2,omitempty"`
	City       string `gorm:"type:varchar(128);not null" json:"city" binding:"required"`
	State      string `gorm:"type:varchar(128)" json:"state,omitempty"`
	PostalCode string `gorm:"type:varchar(16);not null" json:"postal_code" binding:"required,pincode"`
	Country    string `gorm:"type:varchar(2);not null;default:'IN'" json:"country,omitempty"`
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
	Note          string        `json:"note,omitempty"`
	Actor         string        `json:"actor,omitempty"`
	At            time.Time     `json:"at"`
}

// Order is the durable record of a sale. Rows are never deleted, only
// transitioned between statuses.
type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`
	Customer        Customer    `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	ShippingAddress Address     `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Items           []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT" json:"items"`

	Subtotal   int64  `gorm:"not null" json:"subtotal"` // paise
	Discount   int64  `gorm:"not null;default:0" json:"discount"`
	Shipping   int64  `gorm:"not null;default:0" json:"shipping"`
	Total      int64  `gorm:"not null" json:"total"`
	Currency   string `gorm:"type:varchar(3);not null" json:"currency"`
	CouponCode string `gorm:"type:varchar(64);index" json:"coupon_code,omitempty"`

	PaymentMethod         string        `gorm:"type:varchar(32)" json:"payment_method,omitempty"`
	PaymentStatus         PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	TransactionID         string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_id"`
	MerchantTransactionID string        `gorm:"type:varchar(64);index;not null" json:"merchant_transaction_id"`
	PaidAt                *time.Time    `json:"paid_at,omitempty"`
	AmountVerified        bool          `gorm:"not null;default:false" json:"amount_verified"`

	Status               OrderStatus                       `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CustomerNotes        string                            `gorm:"type:text" json:"customer_notes,omitempty"`
	StatusHistory        datatypes.JSONSlice[StatusChange] `gorm:"type:jsonb" json:"status_history"`
	NeedsReconciliation  bool                              `gorm:"not null;default:false;index" json:"needs_reconciliation"`
	ReconciliationReason string                            `gorm:"type:varchar(256)" json:"reconciliation_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"-"`
	Kind        LineItemKind `gorm:"type:varchar(16);not null" json:"kind"`
	ProductID   *uuid.UUID   `gorm:"type:uuid;index" json:"product_id,omitempty"`
	Name        string       `gorm:"type:varchar(256);not null" json:"name"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   int64        `gorm:"not null" json:"unit_price"`
	Quantity    int          `gorm:"not null" json:"quantity"`
	LineTotal   int64        `gorm:"not null" json:"line_total"`
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	NeedsReconciliation *bool
	Status              OrderStatus
	PaymentStatus       PaymentStatus
	Page                int
	Limit               int
}

// UpdateOrderStatusRequest is the admin payload for a status transition.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required,oneof=pending confirmed shipped delivered cancelled"`
	Note   string      `json:"note"`
}
