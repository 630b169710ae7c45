//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/audit"
	"surasmart/pkg/platform/audit/publisher"
	"surasmart/pkg/testutil/containers"
)

const testTopic = "surasmart.audit.test"

type KafkaPublisherSuite struct {
	suite.Suite
	broker string
	sink   *publisher.Kafka
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(s.T())
	s.broker = redpanda.Broker

	adminClient, err := kgo.NewClient(kgo.SeedBrokers(s.broker))
	s.Require().NoError(err)
	defer adminClient.Close()

	admin := kadm.NewClient(adminClient)
	_, err = admin.CreateTopic(ctx, 1, 1, nil, testTopic)
	s.Require().NoError(err)

	sink, err := publisher.NewKafka([]string{s.broker}, testTopic)
	s.Require().NoError(err)
	s.T().Cleanup(sink.Close)
	s.sink = sink
}

// consumedPayload mirrors the wire shape compliance consumers decode.
type consumedPayload struct {
	CaseID           string            `json:"case_id"`
	ActorFingerprint string            `json:"actor_fingerprint"`
	Action           string            `json:"action"`
	Metadata         map[string]string `json:"metadata"`
	Timestamp        string            `json:"timestamp"`
	Jurisdiction     string            `json:"jurisdiction"`
	Hash             string            `json:"hash"`
}

// consume reads the topic from the start and returns the first want records
// keyed by the given case. Tests share a topic, so filtering by key keeps them
// independent of suite ordering.
func (s *KafkaPublisherSuite) consume(ctx context.Context, caseID id.CaseID, want int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for len(records) < want {
		fetches := consumer.PollFetches(deadline)
		s.Require().NoError(fetches.Err())
		for _, record := range fetches.Records() {
			if string(record.Key) == caseID.String() {
				records = append(records, record)
			}
		}
	}
	return records
}

func (s *KafkaPublisherSuite) TestAppendProducesDecodablePayload() {
	ctx := context.Background()
	caseID := id.NewCaseID()
	actor := id.NewUserID()

	event := audit.Event{
		CaseID:           caseID,
		ActorID:          actor,
		ActorFingerprint: audit.ActorFingerprint(actor),
		Action:           audit.ActionMatchVerified,
		Metadata:         map[string]string{"match_id": id.NewMatchID().String(), "confidence": "0.9900"},
		Timestamp:        time.Now().UTC(),
		Jurisdiction:     id.JurisdictionKE,
	}
	event.Hash = event.ComputeHash()

	s.Require().NoError(s.sink.Append(ctx, event))

	records := s.consume(ctx, caseID, 1)
	s.Require().Len(records, 1)
	s.Equal(caseID.String(), string(records[0].Key), "records are keyed by case for per-case ordering")

	var payload consumedPayload
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal(caseID.String(), payload.CaseID)
	s.Equal(event.ActorFingerprint, payload.ActorFingerprint)
	s.Equal(audit.ActionMatchVerified, payload.Action)
	s.Equal(event.Metadata, payload.Metadata)
	s.Equal(event.Timestamp.Format(time.RFC3339Nano), payload.Timestamp)
	s.Equal("KE", payload.Jurisdiction)
	s.Equal(event.Hash, payload.Hash)
}

// TestPerCaseOrderingSurvivesTransit publishes a transition trail for one case
// and verifies consumers see it in append order.
func (s *KafkaPublisherSuite) TestPerCaseOrderingSurvivesTransit() {
	ctx := context.Background()
	caseID := id.NewCaseID()
	actor := id.NewUserID()

	actions := []string{
		audit.TransitionAction("REPORTED", "UNDER_INVESTIGATION"),
		audit.TransitionAction("UNDER_INVESTIGATION", "MATCH_FOUND"),
		audit.TransitionAction("MATCH_FOUND", "PENDING_CLOSURE"),
		audit.TransitionAction("PENDING_CLOSURE", "CLOSED"),
	}
	for _, action := range actions {
		event := audit.Event{
			CaseID:           caseID,
			ActorFingerprint: audit.ActorFingerprint(actor),
			Action:           action,
			Timestamp:        time.Now().UTC(),
			Jurisdiction:     id.JurisdictionKE,
		}
		event.Hash = event.ComputeHash()
		s.Require().NoError(s.sink.Append(ctx, event))
	}

	var trail []string
	for _, record := range s.consume(ctx, caseID, len(actions)) {
		var payload consumedPayload
		s.Require().NoError(json.Unmarshal(record.Value, &payload))
		trail = append(trail, payload.Action)
	}
	s.Equal(actions, trail)
}

func (s *KafkaPublisherSuite) TestListByCaseUnsupported() {
	_, err := s.sink.ListByCase(context.Background(), id.NewCaseID())
	s.Error(err, "the topic is write-only from the service side")
}
