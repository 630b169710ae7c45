package casefile

import (
	"context"

	id "surasmart/pkg/domain"
)

// Store persists cases.
//
// Mutate runs a read-modify-write atomically per case: the callback sees the
// current row, edits it, and the edited row is written back before any other
// mutation of the same case may start. Two concurrent sign calls must
// serialize through it.
type Store interface {
	Create(ctx context.Context, c Case) error
	Get(ctx context.Context, caseID id.CaseID) (Case, error)
	Mutate(ctx context.Context, caseID id.CaseID, fn func(c *Case) error) (Case, error)
}
