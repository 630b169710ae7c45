package domain

import dErrors "surasmart/pkg/domain-errors"

// ClosureAction records how a search session was concluded.
// Invariant: the value must be one of the four supported closure actions.
//
// Usage: construct via ParseClosureAction at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ClosureAction string

const (
	ClosureSave        ClosureAction = "save"
	ClosureFinalize    ClosureAction = "finalize"
	ClosureSearchAgain ClosureAction = "search_again"
	ClosureNoMatch     ClosureAction = "no_match"
)

// validClosureActions is the single source of truth for valid closure actions.
var validClosureActions = map[ClosureAction]bool{
	ClosureSave:        true,
	ClosureFinalize:    true,
	ClosureSearchAgain: true,
	ClosureNoMatch:     true,
}

// ParseClosureAction constructs a ClosureAction from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseClosureAction(s string) (ClosureAction, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "closure action cannot be empty")
	}
	a := ClosureAction(s)
	if !validClosureActions[a] {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid closure action %q", s)
	}
	return a, nil
}

// IsValid checks if the closure action is one of the supported enum values.
func (a ClosureAction) IsValid() bool {
	return validClosureActions[a]
}

// String returns the string representation of the closure action.
func (a ClosureAction) String() string {
	return string(a)
}

// Feedback returns the operator-facing confirmation message for the action.
func (a ClosureAction) Feedback() string {
	switch a {
	case ClosureSave:
		return "Search result saved for later review."
	case ClosureFinalize:
		return "Match finalized. The case has been marked as found."
	case ClosureSearchAgain:
		return "Search session closed. You can start a new search anytime."
	case ClosureNoMatch:
		return "Recorded that no match was found. Search archived for reference."
	default:
		return "Session closed."
	}
}
