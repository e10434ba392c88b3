package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// WebhookLedger remembers which gateway events were already applied so that
// redeliveries can be acknowledged without touching the order store.
type WebhookLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	// Record stores the event. It returns false if the event was already
	// recorded by another delivery.
	Record(ctx context.Context, event *models.WebhookEvent, outcome string) (bool, error)
}

// DynamoAPI is the subset of *dynamodb.Client used by the ledger.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoWebhookLedger keeps one item per event id with a TTL attribute.
type DynamoWebhookLedger struct {
	client DynamoAPI
	table  string
	ttl    time.Duration
}

func NewDynamoWebhookLedger(client DynamoAPI, table string, ttl time.Duration) *DynamoWebhookLedger {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &DynamoWebhookLedger{client: client, table: table, ttl: ttl}
}

type ddbWebhookEvent struct {
	EventID       string `dynamodbav:"event_id"`
	MerchantTxnID string `dynamodbav:"merchant_transaction_id"`
	TransactionID string `dynamodbav:"transaction_id"`
	Code          string `dynamodbav:"code"`
	Outcome       string `dynamodbav:"outcome"`
	ReceivedAt    string `dynamodbav:"received_at"`
	ExpiresAt     int64  `dynamodbav:"expires_at"`
}

func (l *DynamoWebhookLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"event_id": eventID})
	if err != nil {
		return false, fmt.Errorf("marshal key: %w", err)
	}

	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &l.table,
		Key:            key,
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return false, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	return len(out.Item) > 0, nil
}

func (l *DynamoWebhookLedger) Record(ctx context.Context, event *models.WebhookEvent, outcome string) (bool, error) {
	item, err := attributevalue.MarshalMap(ddbWebhookEvent{
		EventID:       event.EventID,
		MerchantTxnID: event.MerchantTransactionID,
		TransactionID: event.TransactionID,
		Code:          string(event.Code),
		Outcome:       outcome,
		ReceivedAt:    event.ReceivedAt.UTC().Format(time.RFC3339),
		ExpiresAt:     event.ReceivedAt.Add(l.ttl).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal webhook event: %w", err)
	}

	cond := "attribute_not_exists(event_id)"
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &l.table,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return true, nil
}

// NoopWebhookLedger is used when no ledger table is configured; the
// conditional order updates still make redeliveries harmless.
type NoopWebhookLedger struct{}

func (NoopWebhookLedger) Seen(context.Context, string) (bool, error) { return false, nil }
func (NoopWebhookLedger) Record(context.Context, *models.WebhookEvent, string) (bool, error) {
	return true, nil
}

func boolPtr(b bool) *bool { return &b }
