package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-gateway/models"
	awspkg "storefront-gateway/pkg/aws"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sink names accepted by EVENTS_SINK.
const (
	SinkNone  = "none"
	SinkSNS   = "sns"
	SinkKafka = "kafka"
)

// Publisher delivers document events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event models.DocumentEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.DocumentEvent) error { return nil }
func (NoopPublisher) Close() error                                       { return nil }

// SNSPublisher publishes events as JSON to one topic.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

// NewSNSPublisher creates a new SNSPublisher.
func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.DocumentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, body, map[string]string{
		"event":      event.Event,
		"collection": event.Collection,
	})
}

func (p *SNSPublisher) Close() error { return nil }

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to one topic, keyed by collection so a
// collection's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.DocumentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Collection),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Event)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// AsyncPublisher publishes in the background so a slow sink never delays a
// response. Failures are logged and dropped.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	logger  *zap.Logger
}

// NewAsyncPublisher wraps next.
func NewAsyncPublisher(next Publisher, timeout time.Duration, logger *zap.Logger) *AsyncPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncPublisher{next: next, timeout: timeout, logger: logger}
}

// Publish never returns an error; delivery happens on its own goroutine.
func (p *AsyncPublisher) Publish(_ context.Context, event models.DocumentEvent) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.next.Publish(ctx, event); err != nil {
			p.logger.Warn("Failed to publish document event",
				zap.Error(err),
				zap.String("event", event.Event),
				zap.String("collection", event.Collection),
			)
		}
	}()
	return nil
}

func (p *AsyncPublisher) Close() error {
	return p.next.Close()
}
