package kafka

import (
	"context"
	"fmt"

	"ms-sorteos/internal/config"
	"ms-sorteos/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// EventPublisher streams order lifecycle events, one topic per event type.
type EventPublisher struct {
	producer Publisher
	topics   map[string]string
}

func NewEventPublisher(p Publisher, topics config.TopicConfig) *EventPublisher {
	return &EventPublisher{
		producer: p,
		topics: map[string]string{
			models.EventOrderReserved:  topics.OrderReserved,
			models.EventOrderApproved:  topics.OrderApproved,
			models.EventOrderRejected:  topics.OrderRejected,
			models.EventOrderCancelled: topics.OrderCancelled,
		},
	}
}

// PublishOrderEvent streams the order event to Kafka keyed by order id
func (e *EventPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	topic, ok := e.topics[event.Type]
	if !ok {
		return fmt.Errorf("no topic for event type %q", event.Type)
	}
	return e.producer.Publish(ctx, topic, event.OrderID, event)
}
