package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	var key struct {
		EventID string `dynamodbav:"event_id"`
	}
	if err := attributevalue.UnmarshalMap(in.Key, &key); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.items[key.EventID]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	var rec ddbWebhookEvent
	if err := attributevalue.UnmarshalMap(in.Item, &rec); err != nil {
		return nil, err
	}
	if _, exists := f.items[rec.EventID]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: stringPtr("exists")}
	}
	f.items[rec.EventID] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func stringPtr(s string) *string { return &s }

func TestDynamoWebhookLedger_RecordOnce(t *testing.T) {
	ddb := newFakeDynamo()
	ledger := NewDynamoWebhookLedger(ddb, "webhook-events", time.Hour)
	ev := &models.WebhookEvent{EventID: "evt_1", MerchantTransactionID: "order_1", Code: models.WebhookPaymentSuccess, ReceivedAt: time.Now()}

	seen, err := ledger.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	first, err := ledger.Record(context.Background(), ev, "applied")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ledger.Record(context.Background(), ev, "applied")
	require.NoError(t, err)
	assert.False(t, second)

	seen, err = ledger.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDynamoWebhookLedger_PropagatesErrors(t *testing.T) {
	ddb := newFakeDynamo()
	ddb.err = errors.New("throttled")
	ledger := NewDynamoWebhookLedger(ddb, "webhook-events", 0)

	_, err := ledger.Seen(context.Background(), "evt_1")
	assert.Error(t, err)

	_, err = ledger.Record(context.Background(), &models.WebhookEvent{EventID: "evt_1"}, "applied")
	assert.Error(t, err)
}
