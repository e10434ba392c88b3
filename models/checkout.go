package models

// Line limits, in paise and units. They keep every line total and cart sum
// far inside int64.
const (
	MaxUnitPrice = 10_000_000
	MaxQuantity  = 100
)

// CartItem is a line as submitted by the storefront. Kind is declared by the
// client; the server never infers it from the shape of ProductID.
type CartItem struct {
	Kind        LineItemKind `json:"kind" binding:"required,oneof=catalog custom"`
	ProductID   string       `json:"product_id,omitempty"`
	Name        string       `json:"name" binding:"required,max=256"`
	Description string       `json:"description,omitempty"`
	UnitPrice   int64        `json:"unit_price" binding:"required,gt=0,lte=10000000"`
	Quantity    int          `json:"quantity" binding:"required,min=1,max=100"`
}

// OrderData is the buyer-entered part of a checkout.
type OrderData struct {
	Customer        Customer   `json:"customer" binding:"required"`
	ShippingAddress Address    `json:"shipping_address" binding:"required"`
	Items           []CartItem `json:"items" binding:"required,min=1,max=50,dive"`
	CouponCode      string     `json:"coupon_code,omitempty"`
	Notes           string     `json:"notes,omitempty" binding:"max=1000"`
	Currency        string     `json:"currency,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	// DeclaredTotal is what the storefront showed the buyer, in paise. It is
	// only trusted when the gateway cannot be asked.
	DeclaredTotal int64 `json:"total" binding:"required,gt=0"`
}

// AuthProof is the gateway's proof that the buyer authorized a payment.
type AuthProof struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	PaymentID      string `json:"payment_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

// CompleteCheckoutRequest is the body of POST /checkout/complete.
type CompleteCheckoutRequest struct {
	AuthProof
	Order OrderData `json:"order" binding:"required"`
}

// InitiateCheckoutRequest is the body of POST /checkout/orders.
type InitiateCheckoutRequest struct {
	Items      []CartItem `json:"items" binding:"required,min=1,max=50,dive"`
	CouponCode string     `json:"coupon_code,omitempty"`
	Currency   string     `json:"currency,omitempty"`
}

// InitiateCheckoutResponse tells the storefront which gateway order to pay.
type InitiateCheckoutResponse struct {
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	KeyID          string  `json:"key_id,omitempty"`
	Receipt        string  `json:"receipt"`
	ClientSecret   string  `json:"client_secret,omitempty"`
	ClientProof    string  `json:"client_proof,omitempty"`
	Pricing        Pricing `json:"pricing"`
}

// Pricing is the server-computed price breakdown in paise.
type Pricing struct {
	Subtotal       int64           `json:"subtotal"`
	Discount       int64           `json:"discount"`
	Shipping       int64           `json:"shipping"`
	Total          int64           `json:"total"`
	Currency       string          `json:"currency"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CouponRejected CouponRejection `json:"coupon_rejected,omitempty"`
}

// OrderConfirmation is returned to the buyer once an order exists.
type OrderConfirmation struct {
	OrderNumber     string        `json:"order_number"`
	Total           int64         `json:"total"`
	Currency        string        `json:"currency"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CaptureDeferred bool          `json:"capture_deferred"`
	AmountVerified  bool          `json:"amount_verified"`
	Replayed        bool          `json:"replayed,omitempty"`
}
