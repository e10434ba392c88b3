package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeGateway takes payments through PaymentIntents created with manual
// capture. A PaymentIntent id serves as both the gateway order id and the
// payment id.
type StripeGateway struct {
	api           *client.API
	publishable   string
	signingSecret string
	webhookSecret string
}

// StripeConfig configures a StripeGateway. SigningSecret signs the checkout
// proof issued alongside each PaymentIntent.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	SigningSecret  string
	Timeout        time.Duration
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if cfg.SigningSecret == "" {
		cfg.SigningSecret = cfg.SecretKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	// Retries stay off; an ambiguous capture is handed to reconciliation.
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		publishable:   cfg.PublishableKey,
		signingSecret: cfg.SigningSecret,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (g *StripeGateway) Name() string  { return "stripe" }
func (g *StripeGateway) KeyID() string { return g.publishable }

func (g *StripeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*models.GatewayOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(strings.ToLower(currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.AddMetadata("receipt", receipt)
	params.SetIdempotencyKey("create-" + receipt)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("stripe create payment intent", stripeErr(err))
	}
	return &models.GatewayOrder{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Receipt:      receipt,
		ClientSecret: pi.ClientSecret,
		ClientProof:  SignPayment(g.signingSecret, pi.ID, pi.ID),
	}, nil
}

// VerifySignature checks the proof issued by CreateOrder. For Stripe the order
// and payment ids are the same PaymentIntent.
func (g *StripeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID != paymentID {
		return false
	}
	return VerifyPaymentSignature(g.signingSecret, orderID, paymentID, signature)
}

func (g *StripeGateway) FetchPayment(ctx context.Context, paymentID string) (*models.GatewayTransaction, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := g.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, classify("stripe fetch payment intent", stripeErr(err))
	}
	return stripeTransaction(pi), nil
}

func (g *StripeGateway) Capture(ctx context.Context, paymentID string, amount int64, currency string) (*models.GatewayTransaction, error) {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + paymentID)

	pi, err := g.api.PaymentIntents.Capture(paymentID, params)
	if err != nil {
		return nil, classify("stripe capture", stripeErr(err))
	}
	return stripeTransaction(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentID string, amount *int64) (*models.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentID),
	}
	if amount != nil {
		params.Amount = stripe.Int64(*amount)
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentID)

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, classify("stripe refund", stripeErr(err))
	}
	return &models.RefundResult{RefundID: r.ID, PaymentID: paymentID, Amount: r.Amount, Status: string(r.Status)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and normalizes
// payment_intent events.
func (g *StripeGateway) ParseWebhook(payload []byte, header http.Header) (*models.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	if !strings.HasPrefix(string(event.Type), "payment_intent.") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe webhook: %w", err)
	}

	var code models.WebhookCode
	switch event.Type {
	case "payment_intent.succeeded":
		code = models.WebhookPaymentSuccess
	case "payment_intent.payment_failed":
		code = models.WebhookPaymentError
	case "payment_intent.canceled":
		code = models.WebhookPaymentDeclined
	case "payment_intent.processing", "payment_intent.amount_capturable_updated":
		code = models.WebhookPaymentPending
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	return &models.WebhookEvent{
		EventID:               event.ID,
		MerchantTransactionID: pi.ID,
		TransactionID:         pi.ID,
		Code:                  code,
		RawType:               string(event.Type),
		Amount:                amount,
		ReceivedAt:            time.Now().UTC(),
	}, nil
}

func stripeTransaction(pi *stripe.PaymentIntent) *models.GatewayTransaction {
	tx := &models.GatewayTransaction{
		GatewayOrderID:   pi.ID,
		GatewayPaymentID: pi.ID,
		Status:           stripeStatus(pi),
		AmountPaise:      pi.Amount,
		Currency:         strings.ToUpper(string(pi.Currency)),
	}
	if tx.Status == models.GatewayStatusCaptured && pi.AmountReceived > 0 {
		tx.AmountPaise = pi.AmountReceived
	}
	if len(pi.PaymentMethodTypes) > 0 {
		tx.Method = pi.PaymentMethodTypes[0]
	}
	return tx
}

func stripeStatus(pi *stripe.PaymentIntent) models.GatewayStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return models.GatewayStatusAuthorized
	case stripe.PaymentIntentStatusSucceeded:
		if pi.LatestCharge != nil && pi.LatestCharge.Refunded {
			return models.GatewayStatusRefunded
		}
		return models.GatewayStatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return models.GatewayStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusProcessing:
		return models.GatewayStatusCreated
	default:
		return models.GatewayStatusUnknown
	}
}

// stripeErr turns 5xx Stripe errors into ErrOutcomeUnknown and 4xx into
// APIError.
func stripeErr(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.HTTPStatusCode >= 500 || se.HTTPStatusCode == 0 {
		return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}
	return &APIError{Gateway: "stripe", StatusCode: se.HTTPStatusCode, Code: string(se.Code), Message: se.Msg}
}
