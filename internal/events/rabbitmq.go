package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"storefront/pkg/rabbitmq"
)

// RabbitPublisher publishes events to a RabbitMQ topic exchange, routed by event type.
type RabbitPublisher struct {
	client *rabbitmq.Client
}

func NewRabbitPublisher(client *rabbitmq.Client) *RabbitPublisher {
	return &RabbitPublisher{client: client}
}

func (p *RabbitPublisher) Publish(_ context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(event.Type, body)
}

func (p *RabbitPublisher) Close() error {
	return p.client.Close()
}

// ConsumeRabbit feeds every queued event to handler until the connection closes.
func ConsumeRabbit(ctx context.Context, client *rabbitmq.Client, handler Handler) error {
	return client.Consume(func(msg amqp.Delivery) error {
		var event OrderEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		return handler(ctx, event)
	})
}
