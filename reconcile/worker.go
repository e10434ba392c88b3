package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anisha-singhal/Lumera-sub000/gateway"
	"github.com/anisha-singhal/Lumera-sub000/models"
	aws_pkg "github.com/anisha-singhal/Lumera-sub000/pkg/aws"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

// Poller is satisfied by *aws.SQSClient.
type Poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// Worker drains the reconciliation queue. It only brings the order row in
// line with what the gateway reports; moving money stays with an admin.
type Worker struct {
	poller  Poller
	gateway gateway.Gateway
	orders  repository.OrderRepository
	clock   clock.Clock
	logger  *zap.Logger
}

func NewWorker(poller Poller, gw gateway.Gateway, orders repository.OrderRepository, clk clock.Clock, logger *zap.Logger) *Worker {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Worker{poller: poller, gateway: gw, orders: orders, clock: clk, logger: logger}
}

// Start polls until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting reconciliation worker")
	err := w.poller.StartPolling(ctx, w.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("Reconciliation polling stopped", zap.Error(err))
	}
}

// Handle processes one queue message. A returned error leaves the message on
// the queue for another try.
func (w *Worker) Handle(ctx context.Context, body string) error {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var task models.ReconciliationTask
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		w.logger.Error("Dropping malformed reconciliation task", zap.Error(err))
		return nil
	}
	log := w.logger.With(
		zap.String("order_number", task.OrderNumber),
		zap.String("payment_id", task.PaymentID),
		zap.String("reason", task.Reason),
	)

	order, err := w.lookup(ctx, task)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		// A payment with no order: a refund that did not go through.
		log.Error("Payment has no order, manual refund required", zap.Int64("amount", task.Amount))
		return nil
	case err != nil:
		return fmt.Errorf("load order: %w", err)
	}
	if order.TransactionID == "" {
		log.Warn("Order has no gateway payment, nothing to reconcile")
		return nil
	}

	tx, err := w.gateway.FetchPayment(ctx, order.TransactionID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", order.TransactionID, err)
	}

	now := w.clock.Now().UTC()
	switch tx.Status {
	case models.GatewayStatusCaptured:
		if order.PaymentStatus != models.PaymentStatusAuthorized {
			return nil
		}
		changed, err := w.orders.MarkCaptured(ctx, order.OrderNumber, now, models.StatusChange{
			Status:        order.Status,
			PaymentStatus: models.PaymentStatusCompleted,
			Note:          "capture confirmed by gateway",
			Actor:         "reconciliation",
			At:            now,
		})
		if err != nil {
			return fmt.Errorf("mark captured: %w", err)
		}
		log.Info("Order payment reconciled", zap.Bool("changed", changed))
	case models.GatewayStatusFailed, models.GatewayStatusRefunded:
		if err := w.orders.AppendHistory(ctx, order.OrderNumber, models.StatusChange{
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			Note:          fmt.Sprintf("gateway reports payment %s", tx.Status),
			Actor:         "reconciliation",
			At:            now,
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		log.Warn("Gateway payment no longer capturable", zap.String("gateway_status", string(tx.Status)))
	case models.GatewayStatusAuthorized:
		log.Info("Payment still awaiting manual capture")
	default:
		log.Warn("Unexpected gateway status", zap.String("gateway_status", string(tx.Status)))
	}
	return nil
}

func (w *Worker) lookup(ctx context.Context, task models.ReconciliationTask) (*models.Order, error) {
	if task.OrderNumber != "" {
		return w.orders.FindByOrderNumber(ctx, task.OrderNumber)
	}
	if task.PaymentID == "" {
		return nil, repository.ErrOrderNotFound
	}
	return w.orders.FindByTransactionID(ctx, task.PaymentID)
}
