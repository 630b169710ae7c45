package audit

import (
	"context"

	id "surasmart/pkg/domain"
)

// Tee writes events to a primary store synchronously and offers them to a
// buffered channel for background mirroring. The primary write is the
// fail-closed path; a full mirror buffer drops the mirror copy rather than
// blocking the request.
type Tee struct {
	primary Store
	mirror  chan<- Event
}

// NewTee wires a tee over the primary store and mirror channel.
func NewTee(primary Store, mirror chan<- Event) *Tee {
	return &Tee{primary: primary, mirror: mirror}
}

func (t *Tee) Append(ctx context.Context, event Event) error {
	if err := t.primary.Append(ctx, event); err != nil {
		return err
	}
	select {
	case t.mirror <- event:
	default:
	}
	return nil
}

// ListByCase reads from the primary store.
func (t *Tee) ListByCase(ctx context.Context, caseID id.CaseID) ([]Event, error) {
	return t.primary.ListByCase(ctx, caseID)
}
