// Package publisher provides the Kafka sink for audit events. Compliance
// tooling consumes the topic; the database store remains the queryable copy.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/audit"
)

// Kafka publishes audit events to a topic with synchronous, fail-closed
// semantics: Append blocks until the broker acknowledges the record.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer for the given brokers and topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// payload matches audit.Event field-for-field for consumer deserialization.
type payload struct {
	CaseID           string            `json:"case_id"`
	ActorFingerprint string            `json:"actor_fingerprint"`
	Action           string            `json:"action"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Timestamp        string            `json:"timestamp"`
	Jurisdiction     string            `json:"jurisdiction"`
	Hash             string            `json:"hash"`
}

// Append produces the event, keyed by case so per-case ordering holds.
func (k *Kafka) Append(ctx context.Context, event audit.Event) error {
	raw, err := json.Marshal(payload{
		CaseID:           event.CaseID.String(),
		ActorFingerprint: event.ActorFingerprint,
		Action:           event.Action,
		Metadata:         event.Metadata,
		Timestamp:        event.Timestamp.UTC().Format(time.RFC3339Nano),
		Jurisdiction:     event.Jurisdiction.String(),
		Hash:             event.Hash,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.CaseID.String()),
		Value: raw,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByCase is not supported on the Kafka sink; the topic is write-only from
// the service's perspective.
func (k *Kafka) ListByCase(context.Context, id.CaseID) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support reads")
}

// Close flushes and releases the producer.
func (k *Kafka) Close() {
	k.client.Close()
}
