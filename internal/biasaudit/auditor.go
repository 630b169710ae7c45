package biasaudit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"surasmart/internal/platform/config"
	dErrors "surasmart/pkg/domain-errors"
)

// DefaultMinSamples is the minimum outcome count for a statistically
// defensible audit run.
const DefaultMinSamples = 100

// Auditor computes disaggregated fairness metrics over prediction records.
type Auditor struct {
	thresholds config.Thresholds
	minSamples int
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the auditor.
type Option func(*Auditor)

// WithMinSamples overrides the minimum sample count.
func WithMinSamples(n int) Option {
	return func(a *Auditor) { a.minSamples = n }
}

// WithClock overrides the auditor clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

// New creates an auditor.
func New(thresholds config.Thresholds, logger *slog.Logger, opts ...Option) *Auditor {
	a := &Auditor{
		thresholds: thresholds,
		minSamples: DefaultMinSamples,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DisaggregatedEvaluation computes global and per-axis per-group metrics, the
// accuracy spread per axis, and the overall pass verdict. Too few samples is
// a hard failure naming the required and actual counts, never a partial
// report. The three axes are independent and evaluated concurrently.
func (a *Auditor) DisaggregatedEvaluation(ctx context.Context, predictions []PredictionRecord) (Report, error) {
	if len(predictions) < a.minSamples {
		return Report{}, dErrors.Newf(dErrors.CodeInsufficientSamples,
			"bias audit requires at least %d samples, got %d", a.minSamples, len(predictions))
	}

	report := Report{
		GeneratedAt:    a.now().UTC(),
		SampleCount:    len(predictions),
		Global:         computeMetrics(predictions, func(PredictionRecord) bool { return true }),
		Axes:           make(map[string]map[string]GroupMetrics, len(Axes)),
		VarianceAlerts: []string{},
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, axis := range Axes {
		g.Go(func() error {
			groups := evaluateAxis(predictions, axis)
			alert := varianceAlert(axis, groups, a.thresholds.BiasVarianceLimit)

			mu.Lock()
			defer mu.Unlock()
			report.Axes[axis] = groups
			if alert != "" {
				report.VarianceAlerts = append(report.VarianceAlerts, alert)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "bias evaluation failed")
	}

	sort.Strings(report.VarianceAlerts)
	report.AuditPassed = len(report.VarianceAlerts) == 0

	a.logger.InfoContext(ctx, "bias audit evaluated",
		slog.Int("samples", report.SampleCount),
		slog.Int("variance_alerts", len(report.VarianceAlerts)),
		slog.Bool("audit_passed", report.AuditPassed),
	)
	return report, nil
}

// evaluateAxis computes metrics for every group value present on the axis.
func evaluateAxis(predictions []PredictionRecord, axis string) map[string]GroupMetrics {
	groups := make(map[string]GroupMetrics)
	values := make(map[string]bool)
	for _, p := range predictions {
		if v := p.axisValue(axis); v != "" {
			values[v] = true
		}
	}
	for value := range values {
		groups[value] = computeMetrics(predictions, func(p PredictionRecord) bool {
			return p.axisValue(axis) == value
		})
	}
	return groups
}

// varianceAlert returns the alert string when the accuracy spread across
// groups with at least one sample exceeds the limit, or "" when within it.
func varianceAlert(axis string, groups map[string]GroupMetrics, limit float64) string {
	var (
		minAcc, maxAcc float64
		seen           bool
	)
	for _, m := range groups {
		if m.Total == 0 {
			continue
		}
		if !seen {
			minAcc, maxAcc = m.Accuracy, m.Accuracy
			seen = true
			continue
		}
		if m.Accuracy < minAcc {
			minAcc = m.Accuracy
		}
		if m.Accuracy > maxAcc {
			maxAcc = m.Accuracy
		}
	}
	if !seen {
		return ""
	}
	spread := maxAcc - minAcc
	if spread > limit {
		return fmt.Sprintf("accuracy variance on %s exceeds limit: spread %.4f > %.4f", axis, spread, limit)
	}
	return ""
}

// computeMetrics builds the confusion matrix over the records selected by the
// filter, using the records' precomputed predicted labels.
func computeMetrics(predictions []PredictionRecord, include func(PredictionRecord) bool) GroupMetrics {
	var m GroupMetrics
	for _, p := range predictions {
		if !include(p) {
			continue
		}
		m.Total++
		switch {
		case p.YTrue == 1 && p.YPred == 1:
			m.TP++
		case p.YTrue == 0 && p.YPred == 0:
			m.TN++
		case p.YTrue == 0 && p.YPred == 1:
			m.FP++
		default:
			m.FN++
		}
	}
	if m.Total > 0 {
		m.Accuracy = float64(m.TP+m.TN) / float64(m.Total)
	}
	if m.FP+m.TN > 0 {
		m.FPR = float64(m.FP) / float64(m.FP+m.TN)
	}
	if m.TP+m.FN > 0 {
		m.TPR = float64(m.TP) / float64(m.TP+m.FN)
		m.FNR = 1 - m.TPR
	}
	return m
}

// TuneThresholds scans candidate decision thresholds from 0.50 to 0.99 in
// 0.01 steps, ascending, and for each group on the axis keeps overwriting the
// selected threshold with any candidate whose FPR meets the target. The
// result per group is therefore the last qualifying threshold in scan order:
// for a monotonic FPR curve that is the highest qualifying threshold, but the
// scan does not verify monotonicity, so a non-monotonic curve yields the last
// qualifying candidate, not a global maximum.
func (a *Auditor) TuneThresholds(predictions []PredictionRecord, axis string, targetFPR float64) (map[string]float64, error) {
	if len(predictions) < a.minSamples {
		return nil, dErrors.Newf(dErrors.CodeInsufficientSamples,
			"threshold tuning requires at least %d samples, got %d", a.minSamples, len(predictions))
	}

	values := make(map[string]bool)
	for _, p := range predictions {
		if v := p.axisValue(axis); v != "" {
			values[v] = true
		}
	}
	if len(values) == 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "no samples carry a value for axis %q", axis)
	}

	selected := make(map[string]float64, len(values))
	for value := range values {
		selected[value] = 0.50
		for step := 0; step < 50; step++ {
			candidate := 0.50 + float64(step)*0.01
			fpr := fprAtThreshold(predictions, axis, value, candidate)
			if fpr <= targetFPR {
				selected[value] = candidate
			}
		}
	}
	return selected, nil
}

// fprAtThreshold recomputes the false positive rate for one group with the
// predicted label rederived at the candidate threshold.
func fprAtThreshold(predictions []PredictionRecord, axis, value string, threshold float64) float64 {
	var fp, tn int
	for _, p := range predictions {
		if p.axisValue(axis) != value || p.YTrue != 0 {
			continue
		}
		if p.Confidence >= threshold {
			fp++
		} else {
			tn++
		}
	}
	if fp+tn == 0 {
		return 0
	}
	return float64(fp) / float64(fp+tn)
}
