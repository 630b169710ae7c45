// Package worker mirrors buffered audit events into a secondary sink.
package worker

import (
	"context"

	"surasmart/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. It keeps
// background fan-out (e.g. the Kafka mirror) off the request path while the
// primary store write stays synchronous.
type Worker struct {
	store audit.Store
	inbox <-chan audit.Event
}

// NewWorker wires a worker to its sink and inbox.
func NewWorker(store audit.Store, inbox <-chan audit.Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

// Run processes events until the context is cancelled or a sink write fails.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
