// Package events publishes ingestion lifecycle events to Kafka so external
// consumers (reporting, reconciliation) can follow along. Publishing is
// outbound-only and best-effort: a broker outage never fails a request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
)

const (
	TypeImageIngested = "image.ingested"
	TypeImageDeleted  = "image.deleted"
)

// Event describes a single ingestion lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	ImageID    uuid.UUID `json:"image_id"`
	AccountID  uuid.UUID `json:"account_id"`
	URL        string    `json:"url"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes events to a Kafka topic. A nil Publisher is valid and
// drops every event, which is how the service runs without brokers.
type Publisher struct {
	writer   *kafka.Writer
	strategy retry.Strategy
}

// New creates a Publisher for the given brokers and topic. It returns nil
// when no brokers are configured.
func New(brokers []string, topic string, strategy retry.Strategy) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}

	return &Publisher{writer: writer, strategy: strategy}
}

// Publish serializes the event to JSON and sends it to Kafka. The image ID
// is used as the message key for partitioning and ordering.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if p == nil {
		return nil
	}

	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.ImageID.String()),
		Value: data,
	}

	err = retry.Do(func() error {
		return p.writer.WriteMessages(ctx, msg)
	}, p.strategy)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}

// Close releases the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
