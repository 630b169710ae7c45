package match

import (
	"context"
	"time"

	id "surasmart/pkg/domain"
)

// Decision is the human verdict applied to a candidate.
type Decision struct {
	Status     Status
	VerifiedBy id.UserID
	VerifiedAt time.Time
	Notes      string
}

// Store persists match candidates.
//
// Upsert must be atomic on (CaseID, RecordID): two concurrent searches for
// the same pair must end with exactly one row. A check-then-create
// implementation is a correctness bug.
type Store interface {
	// Upsert creates the candidate, or updates confidence, distance, and the
	// review flag of the existing (case, record) row. Returns the stored row.
	Upsert(ctx context.Context, candidate MatchCandidate) (MatchCandidate, error)
	Get(ctx context.Context, matchID id.MatchID) (MatchCandidate, error)
	// ApplyDecision sets the review outcome and clears the review flag.
	ApplyDecision(ctx context.Context, matchID id.MatchID, decision Decision) (MatchCandidate, error)
	ListByCase(ctx context.Context, caseID id.CaseID) ([]MatchCandidate, error)
	// ListDecided returns every candidate with a final human verdict, for the
	// fairness audit's prediction builder.
	ListDecided(ctx context.Context) ([]MatchCandidate, error)
}
