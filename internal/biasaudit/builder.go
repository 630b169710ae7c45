package biasaudit

import (
	"context"

	"surasmart/internal/match"
	id "surasmart/pkg/domain"
)

// Demographics are the self-reported attributes attached to a case, used
// only for disaggregated evaluation. They never influence matching.
type Demographics struct {
	Gender   string
	SkinType string
	AgeGroup string
}

// DemographicsProvider resolves the demographics of a case. Cases without
// demographic data are skipped, not failed: the audit runs on what it has.
type DemographicsProvider interface {
	DemographicsOf(ctx context.Context, caseID id.CaseID) (Demographics, bool, error)
}

// BuildPredictions converts decided ledger outcomes into labeled prediction
// records. The true label comes from the human verdict; the predicted label
// from whether the recorded confidence cleared the decision threshold.
func BuildPredictions(ctx context.Context, outcomes []match.MatchCandidate, provider DemographicsProvider, decisionThreshold float64) ([]PredictionRecord, error) {
	predictions := make([]PredictionRecord, 0, len(outcomes))
	for _, outcome := range outcomes {
		var yTrue int
		switch outcome.Status {
		case match.StatusVerified:
			yTrue = 1
		case match.StatusFalsePositive, match.StatusRejected:
			yTrue = 0
		default:
			continue
		}

		demo, ok, err := provider.DemographicsOf(ctx, outcome.CaseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		yPred := 0
		if outcome.Confidence >= decisionThreshold {
			yPred = 1
		}
		predictions = append(predictions, PredictionRecord{
			YTrue:      yTrue,
			YPred:      yPred,
			Confidence: outcome.Confidence,
			Gender:     demo.Gender,
			SkinType:   demo.SkinType,
			AgeGroup:   demo.AgeGroup,
		})
	}
	return predictions, nil
}
