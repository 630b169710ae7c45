// Package match keeps the ledger of match candidates: every plausible hit the
// matcher produced, what the review gate said about it, and what the humans
// decided. One row per (case, source record) pair, updated in place on
// re-search.
package match

import (
	"time"

	id "surasmart/pkg/domain"
)

// Status is the review lifecycle of a match candidate.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusVerified      Status = "verified"
	StatusFalsePositive Status = "false_positive"
	// StatusRejected stays in the stored vocabulary for rows imported from
	// systems that distinguish it; the reject action itself records
	// StatusFalsePositive. Both count as negative labels in the fairness audit.
	StatusRejected Status = "rejected"
)

// MatchCandidate links a case to a gallery record with a confidence score and
// the review decision made about it.
type MatchCandidate struct {
	ID                  id.MatchID
	CaseID              id.CaseID
	RecordID            id.RecordID
	Confidence          float64
	Distance            float64
	Source              id.MatchSource
	Status              Status
	RequiresHumanReview bool
	VerifiedBy          *id.UserID
	VerifiedAt          *time.Time
	VerificationNotes   string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
