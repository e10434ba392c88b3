package checkout

import (
	"fmt"
	"net/http"
)

// Kind classifies a failed checkout attempt.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindInvalidSignature     Kind = "invalid_signature"
	KindPaymentNotAuthorized Kind = "payment_not_authorized"
	KindAmountMismatch       Kind = "amount_mismatch"
	KindOrderPersistFailed   Kind = "order_persist_failed"
	KindPricingUnavailable   Kind = "pricing_unavailable"
	KindGatewayUnavailable   Kind = "gateway_unavailable"
)

// Buyer-facing wordings. Every failure uses exactly one of them so that a
// buyer is never told to retry while their money is in an unknown state.
const (
	MessageNotCharged     = "You were not charged. Please try again."
	MessageContactSupport = "We are resolving a payment discrepancy on your order. Please contact support with your payment reference; you will not be charged twice."
)

// Error is a failed checkout attempt. PaymentCaptured and RefundInitiated
// describe where the buyer's money is; Retryable is true only when no money
// was taken.
type Error struct {
	Kind            Kind
	Message         string
	PaymentCaptured bool
	RefundInitiated bool
	Retryable       bool
	Err             error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout %s: %v", e.Kind, e.Err)
	}
	return "checkout " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the failure to a response code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest, KindInvalidSignature:
		return http.StatusBadRequest
	case KindPaymentNotAuthorized:
		return http.StatusPaymentRequired
	case KindAmountMismatch:
		return http.StatusConflict
	case KindPricingUnavailable:
		return http.StatusServiceUnavailable
	case KindGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func notCharged(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: MessageNotCharged, Retryable: true, Err: err}
}

func contactSupport(kind Kind, captured, refunded bool, err error) *Error {
	return &Error{Kind: kind, Message: MessageContactSupport, PaymentCaptured: captured, RefundInitiated: refunded, Err: err}
}
