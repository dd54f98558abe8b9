package kafka

import (
	"context"
	"github.com/ariefcatur/go-catalog-orders/internal/events"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"time"
)

const (
	HeaderTopic   = "x-change-topic"
	HeaderVersion = "x-event-version"
)

// Bus carries change events over a single Kafka topic. The change topic
// ({tenant}/{action}/{resource}) becomes the message key and a header, so
// every change to one resource type lands on one partition in order.
type Bus struct {
	Producer *Producer
	Service  string
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	env := NewEnvelope(b.Service, topic, payload)
	return b.Producer.Publish(ctx, []byte(topic), MustMarshal(env),
		kafka.Header{Key: HeaderTopic, Value: []byte(topic)},
		kafka.Header{Key: HeaderVersion, Value: []byte("1")},
	)
}

func NewEnvelope(producer, topic string, payload []byte) events.Envelope {
	return events.Envelope{
		EventID:      uuid.NewString(),
		Topic:        topic,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producer,
		Payload:      payload,
	}
}
