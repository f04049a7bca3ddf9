package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"aval/internal/platform/kafka/producer"
)

// DefaultTopic is the Kafka topic audit events are published to.
const DefaultTopic = "aval.audit"

// KafkaStore publishes audit events to Kafka so downstream compliance
// consumers can subscribe to ledger decisions.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaStore constructs a Kafka-backed audit sink.
func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaStore{producer: p, topic: topic}
}

// Append publishes one event. The transaction id keys the record so events
// for the same transaction land on the same partition, in order.
func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Publish(ctx, producer.Message{
		Topic: s.topic,
		Key:   []byte(event.TransactionID),
		Value: value,
		Headers: map[string]string{
			"action": string(event.Action),
		},
	})
}
