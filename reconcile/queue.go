// Package reconcile carries orders whose payment is not settled to the
// people and jobs that settle them.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"go.uber.org/zap"
)

// Task reasons.
const (
	ReasonCaptureFailed      = "capture_failed"
	ReasonCaptureUnknown     = "capture_outcome_unknown"
	ReasonAmountUnverified   = "amount_unverified"
	ReasonPricingUnavailable = "pricing_unavailable"
	ReasonMarkCapturedFailed = "mark_captured_failed"
	ReasonRefundFailed       = "refund_failed"
	ReasonPersistUnknown     = "persist_outcome_unknown"
)

type Queue interface {
	Enqueue(ctx context.Context, task models.ReconciliationTask) error
}

// MessageSender is satisfied by *aws.SQSClient.
type MessageSender interface {
	SendMessage(ctx context.Context, body string) error
}

type SQSQueue struct {
	sender MessageSender
}

func NewSQSQueue(sender MessageSender) *SQSQueue {
	return &SQSQueue{sender: sender}
}

func (q *SQSQueue) Enqueue(ctx context.Context, task models.ReconciliationTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal reconciliation task: %w", err)
	}
	return q.sender.SendMessage(ctx, string(body))
}

// LogQueue records tasks in the log only. Flagged orders are still listed by
// the admin reconciliation endpoint.
type LogQueue struct {
	logger *zap.Logger
}

func NewLogQueue(logger *zap.Logger) *LogQueue {
	return &LogQueue{logger: logger}
}

func (q *LogQueue) Enqueue(_ context.Context, task models.ReconciliationTask) error {
	q.logger.Warn("Reconciliation needed",
		zap.String("order_number", task.OrderNumber),
		zap.String("payment_id", task.PaymentID),
		zap.Int64("amount", task.Amount),
		zap.String("reason", task.Reason),
	)
	return nil
}
