package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events with fail-closed semantics: the
// caller blocks until the sink accepts the event, and a sink failure must fail
// the calling operation. Compliance events are never fire-and-forget.
type Publisher struct {
	store Store
}

// NewPublisher creates a publisher backed by the given sink.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit stamps, fingerprints, and persists an event. The integrity hash is
// computed here so every sink sees the same fingerprint.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ActorFingerprint == "" && !event.ActorID.IsNil() {
		event.ActorFingerprint = ActorFingerprint(event.ActorID)
	}
	event.Hash = event.ComputeHash()
	return p.store.Append(ctx, event)
}
