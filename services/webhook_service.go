package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/anisha-singhal/Lumera-sub000/gateway"
	"github.com/anisha-singhal/Lumera-sub000/metrics"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

// Webhook processing results, also used as metric labels.
const (
	WebhookApplied   = "applied"
	WebhookNoChange  = "no_change"
	WebhookDuplicate = "duplicate"
	WebhookLogged    = "logged"
	WebhookIgnored   = "ignored"
	WebhookError     = "error"
)

// ErrWebhookRejected is returned for payloads that fail authentication. It is
// the only error HandleWebhook returns; processing errors are logged so that
// the gateway does not retry forever.
var ErrWebhookRejected = errors.New("webhook rejected")

type WebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, header http.Header) (string, error)
}

type webhookServiceImpl struct {
	gateway gateway.Gateway
	orders  repository.OrderRepository
	ledger  repository.WebhookLedger
	metrics *metrics.Recorder
	clock   clock.Clock
	logger  *zap.Logger
}

func NewWebhookService(
	gw gateway.Gateway,
	orders repository.OrderRepository,
	ledger repository.WebhookLedger,
	rec *metrics.Recorder,
	clk clock.Clock,
	logger *zap.Logger,
) WebhookService {
	if ledger == nil {
		ledger = repository.NoopWebhookLedger{}
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &webhookServiceImpl{gateway: gw, orders: orders, ledger: ledger, metrics: rec, clock: clk, logger: logger}
}

// HandleWebhook applies a gateway push. Updates are keyed by the merchant
// transaction id and are conditional, so a redelivered or out-of-order event
// leaves the order where a single delivery would have.
func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, payload []byte, header http.Header) (string, error) {
	event, err := s.gateway.ParseWebhook(payload, header)
	switch {
	case errors.Is(err, gateway.ErrInvalidWebhookSignature):
		s.logger.Warn("Webhook signature verification failed", zap.String("gateway", s.gateway.Name()), zap.Error(err))
		s.metrics.WebhookEvent("", "rejected")
		return "", ErrWebhookRejected
	case errors.Is(err, gateway.ErrUnsupportedEvent):
		s.logger.Info("Ignoring webhook event", zap.Error(err))
		s.metrics.WebhookEvent("", WebhookIgnored)
		return WebhookIgnored, nil
	case err != nil:
		s.logger.Error("Failed to parse webhook", zap.Error(err))
		s.metrics.WebhookEvent("", WebhookError)
		return WebhookError, nil
	}

	log := s.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.RawType),
		zap.String("code", string(event.Code)),
		zap.String("merchant_transaction_id", event.MerchantTransactionID),
	)

	if seen, err := s.ledger.Seen(ctx, event.EventID); err != nil {
		log.Warn("Webhook ledger lookup failed", zap.Error(err))
	} else if seen {
		log.Info("Skipping duplicate webhook")
		s.metrics.WebhookEvent(string(event.Code), WebhookDuplicate)
		return WebhookDuplicate, nil
	}

	result := s.apply(ctx, event, log)

	if result != WebhookError {
		if _, err := s.ledger.Record(ctx, event, result); err != nil {
			log.Warn("Failed to record webhook in ledger", zap.Error(err))
		}
	}
	s.metrics.WebhookEvent(string(event.Code), result)
	return result, nil
}

func (s *webhookServiceImpl) apply(ctx context.Context, event *models.WebhookEvent, log *zap.Logger) string {
	now := s.clock.Now().UTC()

	var (
		changed bool
		err     error
	)
	switch event.Code {
	case models.WebhookPaymentSuccess:
		changed, err = s.orders.ApplyPaymentSuccess(ctx, event.MerchantTransactionID, now, models.StatusChange{
			Status:        models.OrderStatusConfirmed,
			PaymentStatus: models.PaymentStatusCompleted,
			Note:          "payment captured (" + event.RawType + ")",
			Actor:         "webhook",
			At:            now,
		})
	case models.WebhookPaymentError, models.WebhookPaymentDeclined:
		changed, err = s.orders.ApplyPaymentFailure(ctx, event.MerchantTransactionID, models.StatusChange{
			PaymentStatus: models.PaymentStatusFailed,
			Note:          "payment " + failureWord(event.Code) + " (" + event.RawType + ")",
			Actor:         "webhook",
			At:            now,
		})
	default:
		log.Info("Webhook logged without changes")
		return WebhookLogged
	}

	if err != nil {
		log.Error("Failed to apply webhook", zap.Error(err))
		return WebhookError
	}
	if !changed {
		log.Info("Webhook did not change the order")
		return WebhookNoChange
	}
	log.Info("Webhook applied")
	return WebhookApplied
}

func failureWord(code models.WebhookCode) string {
	if code == models.WebhookPaymentDeclined {
		return "declined"
	}
	return "failed"
}
