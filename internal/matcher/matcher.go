// Package matcher runs similarity scans of a probe embedding against the
// gallery of extracted biometric records and classifies the resulting
// confidence into review bands.
package matcher

import (
	"context"
	"log/slog"

	"surasmart/internal/embedding"
	"surasmart/internal/platform/config"
	"surasmart/internal/record"
	dErrors "surasmart/pkg/domain-errors"
)

// Gallery is the slice of the record store the matcher needs: the extracted
// records in their canonical, stable order.
type Gallery interface {
	ListExtracted(ctx context.Context) ([]record.BiometricRecord, error)
}

// Candidate is the winning gallery record of a scan.
type Candidate struct {
	Record     record.BiometricRecord
	Confidence float64
	Distance   float64
}

// Result summarizes one scan. Best is nil when no gallery record cleared the
// plausibility floor.
type Result struct {
	Best    *Candidate
	Scanned int
}

// Matcher performs exhaustive linear scans. The gallery order is stable, and
// the best candidate only changes on a strictly greater score, so equal-score
// ties always resolve to the earliest record. That determinism is part of the
// evidentiary contract: the same probe against the same gallery names the
// same candidate.
type Matcher struct {
	gallery    Gallery
	thresholds config.Thresholds
	logger     *slog.Logger
}

// New creates a matcher over the given gallery.
func New(gallery Gallery, thresholds config.Thresholds, logger *slog.Logger) *Matcher {
	return &Matcher{gallery: gallery, thresholds: thresholds, logger: logger}
}

// Scan compares the probe against every extracted record and returns the best
// candidate above the plausibility floor, along with the number of records
// scanned.
func (m *Matcher) Scan(ctx context.Context, probe embedding.Vector) (Result, error) {
	records, err := m.gallery.ListExtracted(ctx)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load gallery")
	}

	result := Result{Scanned: len(records)}
	bestScore := -1.0
	for i := range records {
		rec := &records[i]
		if rec.Embedding == nil {
			continue
		}
		score := embedding.CosineSimilarity(probe, *rec.Embedding)
		if score > bestScore {
			bestScore = score
			result.Best = &Candidate{
				Record:     *rec,
				Confidence: score,
				Distance:   embedding.Distance(score),
			}
		}
	}

	if result.Best != nil && result.Best.Confidence < m.thresholds.PlausibilityFloor {
		m.logger.DebugContext(ctx, "best candidate below plausibility floor",
			slog.Float64("confidence", result.Best.Confidence),
			slog.Float64("floor", m.thresholds.PlausibilityFloor),
		)
		result.Best = nil
	}
	return result, nil
}
