// Package session orchestrates facial searches: consent gate, extraction,
// matcher scan, ledger upsert, and the four-way session closure.
package session

import (
	"time"

	id "surasmart/pkg/domain"
)

// SearchSession records one search attempt end to end. Sessions are kept even
// when extraction fails: a zero-candidate session is still audit material.
type SearchSession struct {
	ID                id.SessionID
	CaseID            id.CaseID
	UserID            id.UserID
	ConsentGiven      bool
	CandidatesScanned int
	MatchFound        bool
	Confidence        float64
	RequiresReview    bool
	// BestMatch references the ledger row when a candidate cleared the floor.
	BestMatch     *id.MatchID
	DeviceLabel   string
	Closed        bool
	ClosureAction id.ClosureAction
	ClosureNotes  string
	ClosedAt      *time.Time
	CreatedAt     time.Time
	ElapsedMillis int64
}
