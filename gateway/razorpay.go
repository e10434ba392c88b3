package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com/v1"

// RazorpayGateway talks to the Razorpay REST API. Orders are created with
// payment_capture disabled so that payments stop at "authorized" until we
// capture them explicitly.
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// RazorpayConfig configures a RazorpayGateway.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

func NewRazorpayGateway(cfg RazorpayConfig) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRazorpayBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RazorpayGateway{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPayment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Captured    bool   `json:"captured"`
	ErrorCode   string `json:"error_code"`
	ErrorReason string `json:"error_reason"`
	Notes       any    `json:"notes"`
}

type razorpayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Reason      string `json:"reason"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*models.GatewayOrder, error) {
	body := map[string]any{
		"amount":          amount,
		"currency":        strings.ToUpper(currency),
		"receipt":         receipt,
		"payment_capture": 0,
	}
	var out razorpayOrder
	if err := g.do(ctx, http.MethodPost, "/orders", body, &out); err != nil {
		return nil, classify("razorpay create order", err)
	}
	return &models.GatewayOrder{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Receipt: out.Receipt}, nil
}

// VerifySignature checks the razorpay_signature returned by Checkout, which is
// HMAC-SHA256(order_id|payment_id) under the key secret.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(g.keySecret, orderID, paymentID, signature)
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*models.GatewayTransaction, error) {
	var out razorpayPayment
	if err := g.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &out); err != nil {
		return nil, classify("razorpay fetch payment", err)
	}
	return out.transaction(), nil
}

func (g *RazorpayGateway) Capture(ctx context.Context, paymentID string, amount int64, currency string) (*models.GatewayTransaction, error) {
	body := map[string]any{"amount": amount, "currency": strings.ToUpper(currency)}
	var out razorpayPayment
	if err := g.do(ctx, http.MethodPost, "/payments/"+paymentID+"/capture", body, &out); err != nil {
		return nil, classify("razorpay capture", err)
	}
	return out.transaction(), nil
}

func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amount *int64) (*models.RefundResult, error) {
	body := map[string]any{"speed": "normal"}
	if amount != nil {
		body["amount"] = *amount
	}
	var out razorpayRefund
	if err := g.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", body, &out); err != nil {
		return nil, classify("razorpay refund", err)
	}
	return &models.RefundResult{RefundID: out.ID, PaymentID: out.PaymentID, Amount: out.Amount, Status: out.Status}, nil
}

type razorpayWebhook struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook authenticates X-Razorpay-Signature (HMAC-SHA256 of the raw body
// under the webhook secret) and normalizes payment events.
func (g *RazorpayGateway) ParseWebhook(payload []byte, header http.Header) (*models.WebhookEvent, error) {
	if !VerifyBodySignature(g.webhookSecret, payload, header.Get("X-Razorpay-Signature")) {
		return nil, ErrInvalidWebhookSignature
	}

	var hook razorpayWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("razorpay webhook: %w", err)
	}
	entity := hook.Payload.Payment.Entity
	if entity.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, hook.Event)
	}

	var code models.WebhookCode
	switch hook.Event {
	case "payment.captured", "order.paid":
		code = models.WebhookPaymentSuccess
	case "payment.failed":
		code = models.WebhookPaymentError
		if strings.Contains(strings.ToLower(entity.ErrorReason), "declined") {
			code = models.WebhookPaymentDeclined
		}
	case "payment.authorized":
		code = models.WebhookPaymentPending
	}

	eventID := header.Get("X-Razorpay-Event-Id")
	if eventID == "" {
		eventID = fmt.Sprintf("%s:%s:%d", hook.Event, entity.ID, hook.CreatedAt)
	}

	return &models.WebhookEvent{
		EventID:               eventID,
		MerchantTransactionID: entity.OrderID,
		TransactionID:         entity.ID,
		Code:                  code,
		RawType:               hook.Event,
		Amount:                entity.Amount,
		ReceivedAt:            time.Now().UTC(),
	}, nil
}

func (p razorpayPayment) transaction() *models.GatewayTransaction {
	return &models.GatewayTransaction{
		GatewayOrderID:   p.OrderID,
		GatewayPaymentID: p.ID,
		Status:           razorpayStatus(p.Status),
		AmountPaise:      p.Amount,
		Currency:         p.Currency,
		Method:           p.Method,
	}
}

func razorpayStatus(s string) models.GatewayStatus {
	switch s {
	case "created":
		return models.GatewayStatusCreated
	case "authorized":
		return models.GatewayStatusAuthorized
	case "captured":
		return models.GatewayStatusCaptured
	case "refunded":
		return models.GatewayStatusRefunded
	case "failed":
		return models.GatewayStatusFailed
	default:
		return models.GatewayStatusUnknown
	}
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrOutcomeUnknown, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: razorpay returned %s", ErrOutcomeUnknown, resp.Status)
	}
	if resp.StatusCode >= 300 {
		var eb razorpayErrorBody
		_ = json.Unmarshal(respBody, &eb)
		return &APIError{
			Gateway:    g.Name(),
			StatusCode: resp.StatusCode,
			Code:       eb.Error.Code,
			Message:    eb.Error.Description,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding razorpay response: %w", err)
	}
	return nil
}
