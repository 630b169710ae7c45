package matcher

import (
	"surasmart/internal/platform/config"
)

// Band names the review treatment a match confidence earns.
type Band string

const (
	// BandNoMatch: below the plausibility floor. Not recorded at all.
	BandNoMatch Band = "no_match"
	// BandAutomatic: plausible but clearly below the review zone. Recorded
	// without a human in the loop.
	BandAutomatic Band = "automatic"
	// BandReview: inside the mandatory human review window. Recorded and
	// flagged; no downstream action until a qualified reviewer decides.
	BandReview Band = "requires_review"
	// BandHighConfidence: at or above the decision threshold. Recorded as a
	// strong lead, still subject to verification before case closure.
	BandHighConfidence Band = "high_confidence"
)

// Gate classifies confidences against the configured bands.
type Gate struct {
	thresholds config.Thresholds
}

// NewGate creates a review gate with the given thresholds.
func NewGate(thresholds config.Thresholds) *Gate {
	return &Gate{thresholds: thresholds}
}

// Classify assigns a confidence to its band. Band edges are inclusive on the
// lower bound: exactly 0.90 requires review, exactly 0.98 is high confidence.
func (g *Gate) Classify(confidence float64) Band {
	switch {
	case confidence < g.thresholds.PlausibilityFloor:
		return BandNoMatch
	case confidence < g.thresholds.ReviewLow:
		return BandAutomatic
	case confidence < g.thresholds.ReviewHigh:
		return BandReview
	default:
		return BandHighConfidence
	}
}

// RequiresReview reports whether a confidence falls inside the mandatory
// human review window.
func (g *Gate) RequiresReview(confidence float64) bool {
	return g.Classify(confidence) == BandReview
}
