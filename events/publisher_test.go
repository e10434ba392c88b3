package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/events"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	topic string
	body  []byte
	attrs map[string]string
}

func (f *fakeSNS) Publish(ctx context.Context, topicArn string, message []byte) error {
	return f.PublishWithAttributes(ctx, topicArn, message, nil)
}

func (f *fakeSNS) PublishWithAttributes(_ context.Context, topicArn string, message []byte, attrs map[string]string) error {
	f.topic, f.body, f.attrs = topicArn, message, attrs
	return nil
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleOrder() *models.Order {
	pid := uuid.New()
	return &models.Order{
		OrderNumber:   "LUM-20260101-ABCDEF",
		Customer:      models.Customer{Email: "buyer@example.com"},
		Total:         109900,
		Currency:      "INR",
		PaymentStatus: models.PaymentStatusCompleted,
		Items: []models.OrderItem{
			{Kind: models.LineItemCatalog, ProductID: &pid, Quantity: 2},
			{Kind: models.LineItemCustom, Name: "Custom lavender jar", Quantity: 1},
		},
	}
}

func TestNewOrderEvent_OnlyCatalogItems(t *testing.T) {
	order := sampleOrder()
	ev := events.NewOrderEvent(models.EventOrderConfirmed, order, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))

	require.Len(t, ev.CatalogItems, 1)
	assert.Equal(t, order.Items[0].ProductID.String(), ev.CatalogItems[0].ProductID)
	assert.Equal(t, 2, ev.CatalogItems[0].Quantity)
	assert.Equal(t, "buyer@example.com", ev.CustomerEmail)
}

func TestSNSPublisher_SetsEventTypeAttribute(t *testing.T) {
	sns := &fakeSNS{}
	p := events.NewSNSPublisher(sns, "arn:aws:sns:ap-south-1:123:orders")

	ev := events.NewOrderEvent(models.EventOrderConfirmed, sampleOrder(), time.Now())
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, "arn:aws:sns:ap-south-1:123:orders", sns.topic)
	assert.Equal(t, models.EventOrderConfirmed, sns.attrs["event_type"])

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(sns.body, &decoded))
	assert.Equal(t, "LUM-20260101-ABCDEF", decoded.OrderNumber)
}

func TestKafkaPublisher_KeysByOrderNumber(t *testing.T) {
	w := &fakeWriter{}
	p := events.NewKafkaPublisherWithWriter(w)

	ev := events.NewOrderEvent(models.EventOrderCancelled, sampleOrder(), time.Now())
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "LUM-20260101-ABCDEF", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := events.NewKafkaPublisherWithWriter(w)

	err := p.Publish(context.Background(), events.NewOrderEvent(models.EventOrderConfirmed, sampleOrder(), time.Now()))
	assert.ErrorContains(t, err, "broker down")
}
