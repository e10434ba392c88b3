package models

import "time"

// GatewayStatus is the gateway's own view of a payment.
type GatewayStatus string

const (
	GatewayStatusCreated    GatewayStatus = "created"
	GatewayStatusAuthorized GatewayStatus = "authorized"
	GatewayStatusCaptured   GatewayStatus = "captured"
	GatewayStatusFailed     GatewayStatus = "failed"
	GatewayStatusRefunded   GatewayStatus = "refunded"
	// GatewayStatusUnknown is never reported by a gateway; it marks a payment
	// whose details could not be fetched.
	GatewayStatusUnknown GatewayStatus = "unknown"
)

// GatewayOrder is the result of creating an order on the gateway.
// ClientSecret and ClientProof are only set by gateways whose widget does not
// sign the authorization itself.
type GatewayOrder struct {
	ID           string
	Amount       int64
	Currency     string
	Receipt      string
	ClientSecret string
	ClientProof  string
}

// GatewayTransaction mirrors a gateway payment. It is read-only to us.
type GatewayTransaction struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Status           GatewayStatus
	AmountPaise      int64
	Currency         string
	Method           string
}

// RefundResult describes a refund accepted by the gateway.
type RefundResult struct {
	RefundID  string
	PaymentID string
	Amount    int64
	Status    string
}

// WebhookCode is the normalized outcome carried by a gateway webhook.
type WebhookCode string

const (
	WebhookPaymentSuccess  WebhookCode = "PAYMENT_SUCCESS"
	WebhookPaymentError    WebhookCode = "PAYMENT_ERROR"
	WebhookPaymentDeclined WebhookCode = "PAYMENT_DECLINED"
	WebhookPaymentPending  WebhookCode = "PAYMENT_PENDING"
)

// WebhookEvent is a gateway push normalized across gateways.
type WebhookEvent struct {
	EventID               string
	MerchantTransactionID string
	TransactionID         string
	Code                  WebhookCode
	RawType               string
	Amount                int64
	ReceivedAt            time.Time
}
