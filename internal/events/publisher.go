// Package events publishes pipeline lifecycle events to Kafka.
//
// Publishing is optional: a nil *Publisher is safe to use and does nothing,
// so deployments without a broker simply leave KAFKA_BROKERS unset.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gridwatch/outages/internal/logging"
)

// RefreshCompleted is emitted after a successful swap of the modeled store.
type RefreshCompleted struct {
	CompletedAt  time.Time `json:"completed_at"`
	RawRows      int       `json:"raw_rows"`
	NewRows      int       `json:"new_rows"`
	Plants       int       `json:"plants"`
	Dates        int       `json:"dates"`
	Events       int       `json:"events"`
	DurationMs   int64     `json:"duration_ms"`
	EarlyStopped bool      `json:"early_stopped"`
	SkippedRows  int       `json:"skipped_rows"`
}

// Publisher writes refresh events to one Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		topic: topic,
	}
}

// PublishRefresh emits a refresh-completed event. Failures are logged, never
// propagated: a completed refresh must not be failed by its notification.
func (p *Publisher) PublishRefresh(ctx context.Context, e RefreshCompleted) {
	if p == nil {
		return
	}
	log := logging.Component("events")

	payload, err := json.Marshal(e)
	if err != nil {
		log.Error("marshal refresh event", "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("refresh.completed"),
		Value: payload,
	})
	if err != nil {
		log.Error("publish refresh event", "topic", p.topic, "error", err)
		return
	}
	log.Info("refresh event published", "topic", p.topic)
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
