package record

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"surasmart/internal/embedding"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
	"surasmart/pkg/platform/sentinel"
)

// noFaceReason is the operator-facing failure reason recorded when the
// extractor finds no face in the uploaded image.
const noFaceReason = "No face detected in uploaded image."

// Service ingests gallery images into biometric records.
type Service struct {
	store     Store
	extractor embedding.Extractor
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the record service.
type Option func(*Service)

// WithClock overrides the service clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a record service.
func NewService(store Store, extractor embedding.Extractor, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores an uploaded gallery image as a biometric record and runs
// embedding extraction on it. Duplicate image content (same fingerprint) is
// rejected before extraction. Extraction failures are recorded on the record
// rather than discarded, so operators can see why a record never became
// searchable.
func (s *Service) Ingest(ctx context.Context, caseID id.CaseID, source id.MatchSource, image []byte) (BiometricRecord, error) {
	if len(image) == 0 {
		return BiometricRecord{}, dErrors.New(dErrors.CodeValidation, "image payload is empty")
	}

	rec := BiometricRecord{
		ID:          id.NewRecordID(),
		CaseID:      caseID,
		Fingerprint: Fingerprint(image),
		Source:      source,
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return BiometricRecord{}, dErrors.New(dErrors.CodeConflict, "an identical image has already been ingested")
		}
		return BiometricRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create biometric record")
	}

	extraction, err := s.extractor.Extract(ctx, image)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFace) {
			if ferr := s.store.SetFailed(ctx, rec.ID, noFaceReason, s.now().UTC()); ferr != nil {
				return BiometricRecord{}, dErrors.Wrap(ferr, dErrors.CodeInternal, "failed to record extraction failure")
			}
			s.logger.WarnContext(ctx, "no face found in ingested image",
				slog.String("record_id", rec.ID.String()),
				slog.String("case_id", caseID.String()),
			)
			return BiometricRecord{}, dErrors.New(dErrors.CodeUnprocessable, noFaceReason)
		}
		if ferr := s.store.SetFailed(ctx, rec.ID, err.Error(), s.now().UTC()); ferr != nil {
			s.logger.ErrorContext(ctx, "failed to record extraction failure", slog.String("error", ferr.Error()))
		}
		return BiometricRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "embedding extraction failed")
	}

	processedAt := s.now().UTC()
	if err := s.store.SetExtracted(ctx, rec.ID, extraction.Vector, extraction.Quality, processedAt); err != nil {
		return BiometricRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist embedding")
	}

	rec.Embedding = &extraction.Vector
	rec.Quality = extraction.Quality
	rec.Status = StatusExtracted
	rec.ProcessedAt = &processedAt

	s.logger.InfoContext(ctx, "biometric record ingested",
		slog.String("record_id", rec.ID.String()),
		slog.String("case_id", caseID.String()),
		slog.Float64("quality", extraction.Quality),
	)
	return rec, nil
}

// Get returns a single record by ID.
func (s *Service) Get(ctx context.Context, recordID id.RecordID) (BiometricRecord, error) {
	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return BiometricRecord{}, dErrors.New(dErrors.CodeNotFound, "biometric record not found")
		}
		return BiometricRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load biometric record")
	}
	return rec, nil
}

// Purge erases the embeddings of every record belonging to a case. Called
// when a resolved case passes its retention horizon. Purged records keep
// their row so the match ledger's references stay intact, but the biometric
// payload is gone.
func (s *Service) Purge(ctx context.Context, caseID id.CaseID) (int, error) {
	purged, err := s.store.PurgeByCase(ctx, caseID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge biometric records")
	}
	s.logger.InfoContext(ctx, "biometric records purged",
		slog.String("case_id", caseID.String()),
		slog.Int("purged", purged),
	)
	return purged, nil
}
