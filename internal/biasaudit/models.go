// Package biasaudit evaluates matcher outcomes disaggregated by demographic
// axes and flags accuracy variance across groups. It is a read-only batch
// engine: it consumes finalized review outcomes and produces a report.
package biasaudit

import "time"

// Demographic axes evaluated by the audit.
const (
	AxisGender   = "gender"
	AxisSkinType = "skin_type"
	AxisAgeGroup = "age_group"
)

// Axes lists the evaluated demographic axes in report order.
var Axes = []string{AxisGender, AxisSkinType, AxisAgeGroup}

// PredictionRecord is one labeled matcher outcome. YTrue comes from the human
// verdict (1 verified, 0 false positive); YPred from whether the confidence
// cleared the decision threshold.
type PredictionRecord struct {
	YTrue      int     `json:"y_true"`
	YPred      int     `json:"y_pred"`
	Confidence float64 `json:"confidence"`
	Gender     string  `json:"gender"`
	SkinType   string  `json:"skin_type"`
	AgeGroup   string  `json:"age_group"`
}

// axisValue returns the record's group label on the given axis.
func (p PredictionRecord) axisValue(axis string) string {
	switch axis {
	case AxisGender:
		return p.Gender
	case AxisSkinType:
		return p.SkinType
	case AxisAgeGroup:
		return p.AgeGroup
	default:
		return ""
	}
}

// GroupMetrics is the confusion matrix plus derived rates for one group.
// Rates with a zero denominator are reported as zero, not NaN.
type GroupMetrics struct {
	Total    int     `json:"total"`
	TP       int     `json:"tp"`
	TN       int     `json:"tn"`
	FP       int     `json:"fp"`
	FN       int     `json:"fn"`
	Accuracy float64 `json:"accuracy"`
	FPR      float64 `json:"fpr"`
	TPR      float64 `json:"tpr"`
	FNR      float64 `json:"fnr"`
}

// Report is the structured audit output.
type Report struct {
	GeneratedAt    time.Time                          `json:"generated_at"`
	SampleCount    int                                `json:"sample_count"`
	Global         GroupMetrics                       `json:"global"`
	Axes           map[string]map[string]GroupMetrics `json:"axes"`
	VarianceAlerts []string                           `json:"variance_alerts"`
	AuditPassed    bool                               `json:"audit_passed"`
}
