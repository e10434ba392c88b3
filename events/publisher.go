// Package events publishes order lifecycle events for downstream consumers
// (inventory, analytics). Publishing is best effort for every caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	aws_pkg "github.com/anisha-singhal/Lumera-sub000/pkg/aws"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
	Close() error
}

// NewOrderEvent builds the event for order. Only catalog lines are listed.
func NewOrderEvent(eventType string, order *models.Order, at time.Time) models.OrderEvent {
	ev := models.OrderEvent{
		EventType:     eventType,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.Customer.Email,
		Total:         order.Total,
		Currency:      order.Currency,
		PaymentStatus: order.PaymentStatus,
		CouponCode:    order.CouponCode,
		Timestamp:     at.UTC(),
	}
	for _, it := range order.Items {
		if it.Kind != models.LineItemCatalog || it.ProductID == nil {
			continue
		}
		ev.CatalogItems = append(ev.CatalogItems, models.CatalogLine{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
		})
	}
	return ev
}

// SNSPublisher sends events to an SNS topic with an event_type attribute for
// subscription filters.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType, err)
	}
	return p.client.PublishWithAttributes(ctx, p.topicArn, body, map[string]string{"event_type": event.EventType})
}

func (p *SNSPublisher) Close() error { return nil }

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order number so that all events of
// one order land on the same partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// NewKafkaPublisherWithWriter is used by tests and by callers that configure
// their own writer.
func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType, err)
	}
	msg := kafka.Message{
		Key:     []byte(event.OrderNumber),
		Value:   body,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.EventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.EventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher is used when no event bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event models.OrderEvent) error {
	p.logger.Info("Event bus not configured, event dropped",
		zap.String("event_type", event.EventType),
		zap.String("order_number", event.OrderNumber),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
