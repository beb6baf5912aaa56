package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// KafkaPublisher writes events to one topic keyed by order ID, so every event of an
// order lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	headers := []kafka.Header{{Key: "type", Value: []byte(event.Type)}}
	headers = injectTraceHeaders(ctx, headers)

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   data,
		Headers: headers,
		Time:    time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func extractTraceHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// KafkaConsumer reads events of one topic as part of a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	log    *slog.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, log *slog.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &KafkaConsumer{reader: reader, log: log}
}

// Consume blocks until ctx is cancelled. Handler failures are logged and the message is
// committed anyway; there is no retry.
func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error("failed to read kafka message", "error", err)
			continue
		}

		var event OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("failed to decode event", "offset", msg.Offset, "error", err)
			continue
		}
		if err := handler(extractTraceHeaders(ctx, msg.Headers), event); err != nil {
			c.log.Error("failed to handle event", "type", event.Type, "orderId", event.OrderID, "error", err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
