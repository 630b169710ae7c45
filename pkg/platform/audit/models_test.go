package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/audit"
	memstore "surasmart/pkg/platform/audit/store/memory"
)

func TestComputeHash(t *testing.T) {
	caseID := id.NewCaseID()
	actor := id.NewUserID()
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	event := audit.Event{
		CaseID:           caseID,
		ActorFingerprint: audit.ActorFingerprint(actor),
		Action:           audit.TransitionAction("REPORTED", "UNDER_INVESTIGATION"),
		Metadata:         map[string]string{"notes": "assigned"},
		Timestamp:        at,
		Jurisdiction:     id.JurisdictionKE,
	}

	t.Run("deterministic for equal events", func(t *testing.T) {
		assert.Equal(t, event.ComputeHash(), event.ComputeHash())
	})

	t.Run("sensitive to every hashed field", func(t *testing.T) {
		base := event.ComputeHash()

		tampered := event
		tampered.Action = audit.TransitionAction("REPORTED", "CLOSED")
		assert.NotEqual(t, base, tampered.ComputeHash())

		tampered = event
		tampered.Metadata = map[string]string{"notes": "altered"}
		assert.NotEqual(t, base, tampered.ComputeHash())

		tampered = event
		tampered.Timestamp = at.Add(time.Second)
		assert.NotEqual(t, base, tampered.ComputeHash())

		tampered = event
		tampered.Jurisdiction = id.JurisdictionEU
		assert.NotEqual(t, base, tampered.ComputeHash())
	})

	t.Run("nil and empty metadata hash identically", func(t *testing.T) {
		withNil := event
		withNil.Metadata = nil
		withEmpty := event
		withEmpty.Metadata = map[string]string{}
		assert.Equal(t, withNil.ComputeHash(), withEmpty.ComputeHash())
	})
}

func TestPublisherEmit(t *testing.T) {
	store := memstore.New()
	publisher := audit.NewPublisher(store)
	actor := id.NewUserID()
	caseID := id.NewCaseID()

	err := publisher.Emit(context.Background(), audit.Event{
		CaseID:       caseID,
		ActorID:      actor,
		Action:       audit.ActionMatchVerified,
		Jurisdiction: id.JurisdictionKE,
	})
	require.NoError(t, err)

	events, err := store.ListByCase(context.Background(), caseID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.False(t, got.Timestamp.IsZero(), "publisher must stamp events")
	assert.Equal(t, audit.ActorFingerprint(actor), got.ActorFingerprint)
	assert.Equal(t, got.ComputeHash(), got.Hash, "stored hash must match recomputation")
}
