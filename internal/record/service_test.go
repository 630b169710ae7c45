package record

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"surasmart/internal/embedding"
	mockextractor "surasmart/mocks/extractor"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
)

// =============================================================================
// Record Service Test Suite
// =============================================================================
// Justification for unit tests: ingest combines dedup, extraction, and failure
// bookkeeping in one flow; exercising the failure branches through HTTP would
// need a controllable extraction model.

type RecordServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *InMemoryStore
	extractor *mockextractor.MockExtractor
	service   *Service
	now       time.Time
}

func TestRecordServiceSuite(t *testing.T) {
	suite.Run(t, new(RecordServiceSuite))
}

func (s *RecordServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = NewInMemoryStore()
	s.extractor = mockextractor.NewMockExtractor(s.ctrl)
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.service = NewService(s.store, s.extractor, slog.New(slog.DiscardHandler),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *RecordServiceSuite) vectorWith(first float32) embedding.Vector {
	var v embedding.Vector
	v[0] = first
	return v
}

// =============================================================================
// Ingest Tests
// =============================================================================

func (s *RecordServiceSuite) TestIngest() {
	ctx := context.Background()
	caseID := id.NewCaseID()

	s.Run("empty image is rejected before any storage", func() {
		_, err := s.service.Ingest(ctx, caseID, id.SourceMorgue, nil)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("successful ingest persists the embedding", func() {
		image := []byte("portrait-a")
		s.extractor.EXPECT().Extract(gomock.Any(), image).
			Return(embedding.Extraction{Vector: s.vectorWith(1), Quality: 0.93}, nil)

		rec, err := s.service.Ingest(ctx, caseID, id.SourceMorgue, image)
		s.Require().NoError(err)
		s.Equal(StatusExtracted, rec.Status)
		s.Equal(0.93, rec.Quality)
		s.Require().NotNil(rec.Embedding)
		s.Equal(float32(1), rec.Embedding[0])
		s.Require().NotNil(rec.ProcessedAt)
		s.Equal(s.now, *rec.ProcessedAt)

		stored, err := s.store.Get(ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(StatusExtracted, stored.Status)
	})

	s.Run("identical image content is a conflict", func() {
		image := []byte("portrait-dup")
		s.extractor.EXPECT().Extract(gomock.Any(), image).
			Return(embedding.Extraction{Vector: s.vectorWith(1), Quality: 0.9}, nil)

		_, err := s.service.Ingest(ctx, caseID, id.SourceMorgue, image)
		s.Require().NoError(err)

		_, err = s.service.Ingest(ctx, id.NewCaseID(), id.SourceMorgue, image)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("no face marks the record failed with the operator reason", func() {
		image := []byte("landscape")
		s.extractor.EXPECT().Extract(gomock.Any(), image).
			Return(embedding.Extraction{}, embedding.ErrNoFace)

		_, err := s.service.Ingest(ctx, caseID, id.SourceMorgue, image)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))

		records, err := s.store.ListExtracted(ctx)
		s.Require().NoError(err)
		s.Empty(records)

		// The record row survives with the failure reason attached.
		fingerprint := Fingerprint(image)
		var failed *BiometricRecord
		for _, rec := range s.allRecords() {
			if rec.Fingerprint == fingerprint {
				r := rec
				failed = &r
			}
		}
		s.Require().NotNil(failed)
		s.Equal(StatusFailed, failed.Status)
		s.Equal("No face detected in uploaded image.", failed.ProcessingError)
	})

	s.Run("extractor infrastructure failure surfaces as internal", func() {
		image := []byte("portrait-b")
		s.extractor.EXPECT().Extract(gomock.Any(), image).
			Return(embedding.Extraction{}, errors.New("model endpoint unreachable"))

		_, err := s.service.Ingest(ctx, caseID, id.SourceMorgue, image)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// Purge Tests
// =============================================================================

func (s *RecordServiceSuite) TestPurge() {
	ctx := context.Background()
	caseID := id.NewCaseID()
	otherCase := id.NewCaseID()

	image1 := []byte("purge-1")
	image2 := []byte("purge-2")
	image3 := []byte("keep-1")
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(embedding.Extraction{Vector: s.vectorWith(1), Quality: 0.9}, nil).
		Times(3)

	rec1, err := s.service.Ingest(ctx, caseID, id.SourceMorgue, image1)
	s.Require().NoError(err)
	_, err = s.service.Ingest(ctx, caseID, id.SourceMorgue, image2)
	s.Require().NoError(err)
	kept, err := s.service.Ingest(ctx, otherCase, id.SourceMorgue, image3)
	s.Require().NoError(err)

	purged, err := s.service.Purge(ctx, caseID)
	s.Require().NoError(err)
	s.Equal(2, purged)

	s.Run("purged records lose their embedding but keep the row", func() {
		stored, err := s.store.Get(ctx, rec1.ID)
		s.Require().NoError(err)
		s.Equal(StatusPurged, stored.Status)
		s.Nil(stored.Embedding)
		s.Zero(stored.Quality)
	})

	s.Run("other cases are untouched", func() {
		stored, err := s.store.Get(ctx, kept.ID)
		s.Require().NoError(err)
		s.Equal(StatusExtracted, stored.Status)
		s.NotNil(stored.Embedding)
	})

	s.Run("purge is idempotent", func() {
		purged, err := s.service.Purge(ctx, caseID)
		s.Require().NoError(err)
		s.Zero(purged)
	})
}

func (s *RecordServiceSuite) allRecords() []BiometricRecord {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := make([]BiometricRecord, 0, len(s.store.records))
	for _, rec := range s.store.records {
		out = append(out, rec)
	}
	return out
}
