// Package gateway wraps the payment processors the storefront can take money
// through. Every implementation reports amounts in minor units (paise) and
// normalizes statuses to models.GatewayStatus.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anisha-singhal/Lumera-sub000/models"
)

var (
	// ErrOutcomeUnknown means the call may or may not have taken effect on the
	// gateway (timeout, dropped connection, 5xx). Callers must not treat it as
	// a failed payment.
	ErrOutcomeUnknown = errors.New("gateway: outcome unknown")
	// ErrInvalidWebhookSignature is returned by ParseWebhook for payloads that
	// were not signed by the gateway.
	ErrInvalidWebhookSignature = errors.New("gateway: invalid webhook signature")
	// ErrUnsupportedEvent is returned by ParseWebhook for event types that do
	// not concern a payment.
	ErrUnsupportedEvent = errors.New("gateway: unsupported webhook event")
)

// Gateway is the contract the checkout flow consumes.
type Gateway interface {
	Name() string
	// KeyID is the public key handed to the storefront widget.
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*models.GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
	FetchPayment(ctx context.Context, paymentID string) (*models.GatewayTransaction, error)
	Capture(ctx context.Context, paymentID string, amount int64, currency string) (*models.GatewayTransaction, error)
	// Refund refunds amount paise, or the full captured amount when amount is nil.
	Refund(ctx context.Context, paymentID string, amount *int64) (*models.RefundResult, error)
	ParseWebhook(payload []byte, header http.Header) (*models.WebhookEvent, error)
}

// APIError is a definitive rejection by the gateway (4xx).
type APIError struct {
	Gateway    string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d %s: %s", e.Gateway, e.StatusCode, e.Code, e.Message)
}

// classify folds transport-level uncertainty into ErrOutcomeUnknown so callers
// only need errors.Is(err, ErrOutcomeUnknown).
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOutcomeUnknown) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %v", op, ErrOutcomeUnknown, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
