package audit

import (
	"context"

	id "surasmart/pkg/domain"
)

// Store persists audit events. It is append-only: no sink exposes update or
// delete. Swap with concrete storage without touching domain services.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCase(ctx context.Context, caseID id.CaseID) ([]Event, error)
}
