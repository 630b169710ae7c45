// Package casefile manages missing-person cases: the lifecycle state machine
// and the dual-signature closure protocol. Every state change is audited.
package casefile

import (
	"time"

	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
)

// Status is the lifecycle state of a case.
type Status string

const (
	StatusReported           Status = "REPORTED"
	StatusUnderInvestigation Status = "UNDER_INVESTIGATION"
	StatusMatchFound         Status = "MATCH_FOUND"
	StatusPendingClosure     Status = "PENDING_CLOSURE"
	StatusNoMatch            Status = "NO_MATCH"
	StatusClosed             Status = "CLOSED"
)

// allowedTransitions is the closed transition table. CLOSED is terminal.
var allowedTransitions = map[Status][]Status{
	StatusReported:           {StatusUnderInvestigation, StatusClosed},
	StatusUnderInvestigation: {StatusMatchFound, StatusNoMatch, StatusClosed},
	StatusMatchFound:         {StatusPendingClosure, StatusUnderInvestigation, StatusClosed},
	StatusPendingClosure:     {StatusClosed, StatusUnderInvestigation},
	StatusNoMatch:            {StatusUnderInvestigation, StatusClosed},
	StatusClosed:             {},
}

// CanTransition reports whether the table allows moving from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ParseStatus validates an externally supplied status token.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := allowedTransitions[status]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown case status %q", s)
	}
	return status, nil
}

// Case is one missing-person case. The two signature flags persist across
// sign calls; a signature cannot be revoked once given.
type Case struct {
	ID                 id.CaseID
	ReportedBy         id.UserID
	Status             Status
	SignatureFamily    bool
	SignatureAuthority bool
	Jurisdiction       id.Jurisdiction
	// ResolvedAt is set exactly once, when the case enters CLOSED.
	ResolvedAt *time.Time
	// RetentionExpiry equals ResolvedAt: closed cases are purge-eligible
	// immediately.
	RetentionExpiry *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
