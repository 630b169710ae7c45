package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"surasmart/internal/casefile"
	"surasmart/internal/embedding"
	"surasmart/internal/match"
	"surasmart/internal/matcher"
	"surasmart/internal/platform/config"
	"surasmart/internal/platform/metrics"
	"surasmart/internal/record"
	mockextractor "surasmart/mocks/extractor"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
	"surasmart/pkg/platform/audit"
	auditmemory "surasmart/pkg/platform/audit/store/memory"
)

// =============================================================================
// Search Session Test Suite
// =============================================================================
// Justification for unit tests: the orchestrator ties together consent, the
// extractor, the matcher, the ledger, and the case machine; every branch of
// the search and closure flows must be pinned with a controllable extractor.

type SessionServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	extractor   *mockextractor.MockExtractor
	sessions    *InMemoryStore
	records     *record.InMemoryStore
	matches     *match.InMemoryStore
	cases       *casefile.InMemoryStore
	caseService *casefile.Service
	ledger      *match.Ledger
	auditLog    *auditmemory.Store
	service     *Service
	now         time.Time
	nextAt      time.Time
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.extractor = mockextractor.NewMockExtractor(s.ctrl)
	s.sessions = NewInMemoryStore()
	s.records = record.NewInMemoryStore()
	s.matches = match.NewInMemoryStore()
	s.cases = casefile.NewInMemoryStore()
	s.auditLog = auditmemory.New()
	s.now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.nextAt = s.now.Add(-time.Hour)

	logger := slog.New(slog.DiscardHandler)
	publisher := audit.NewPublisher(s.auditLog)
	thresholds := config.DefaultThresholds()
	clock := func() time.Time { return s.now }

	s.caseService = casefile.NewService(s.cases, publisher, logger, casefile.WithClock(clock))
	gate := matcher.NewGate(thresholds)
	s.ledger = match.NewLedger(s.matches, gate, s.caseService, publisher, logger, match.WithClock(clock))
	m := matcher.New(s.records, thresholds, logger)

	s.service = NewService(s.sessions, s.extractor, m, gate, s.ledger, s.caseService,
		publisher, metrics.New(prometheus.NewRegistry()), thresholds, logger,
		WithClock(clock),
	)
}

func (s *SessionServiceSuite) newCase() casefile.Case {
	c, err := s.caseService.Create(context.Background(), id.NewUserID(), id.JurisdictionKE)
	s.Require().NoError(err)
	return c
}

// addGalleryRecord stores an extracted record with the given embedding.
func (s *SessionServiceSuite) addGalleryRecord(vec embedding.Vector) record.BiometricRecord {
	ctx := context.Background()
	rec := record.BiometricRecord{
		ID:          id.NewRecordID(),
		CaseID:      id.NewCaseID(),
		Fingerprint: id.NewRecordID().String(),
		Source:      id.SourceMorgue,
		Status:      record.StatusPending,
		CreatedAt:   s.nextAt,
	}
	s.nextAt = s.nextAt.Add(time.Second)
	s.Require().NoError(s.records.Create(ctx, rec))
	s.Require().NoError(s.records.SetExtracted(ctx, rec.ID, vec, 1.0, s.nextAt))
	rec.Embedding = &vec
	rec.Status = record.StatusExtracted
	return rec
}

func axisVector(axis int) embedding.Vector {
	var v embedding.Vector
	v[axis] = 1
	return v
}

// =============================================================================
// Search Tests
// =============================================================================

func (s *SessionServiceSuite) TestSearch() {
	ctx := context.Background()
	user := id.NewUserID()

	s.Run("missing consent blocks before extraction", func() {
		c := s.newCase()
		_, err := s.service.Search(ctx, user, c.ID, []byte("img"), false)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMissingConsent))
	})

	s.Run("missing image is a validation failure", func() {
		c := s.newCase()
		_, err := s.service.Search(ctx, user, c.ID, nil, true)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown case is rejected", func() {
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Times(0)
		_, err := s.service.Search(ctx, user, id.NewCaseID(), []byte("img"), true)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("no face still records the session with zero candidates", func() {
		c := s.newCase()
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
			Return(embedding.Extraction{}, embedding.ErrNoFace)

		sess, err := s.service.Search(ctx, user, c.ID, []byte("landscape"), true)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
		s.Zero(sess.CandidatesScanned)
		s.False(sess.MatchFound)

		stored, err := s.service.Get(ctx, sess.ID)
		s.Require().NoError(err)
		s.True(stored.ConsentGiven)
		s.Zero(stored.CandidatesScanned)
	})

	s.Run("match above the floor lands in the ledger", func() {
		c := s.newCase()
		gallery := s.addGalleryRecord(axisVector(0))
		s.addGalleryRecord(axisVector(1))
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
			Return(embedding.Extraction{Vector: axisVector(0), Quality: 1.0}, nil)

		sess, err := s.service.Search(ctx, user, c.ID, []byte("probe"), true)
		s.Require().NoError(err)
		s.True(sess.MatchFound)
		s.Equal(2, sess.CandidatesScanned)
		s.InDelta(1.0, sess.Confidence, 1e-9)
		s.False(sess.RequiresReview) // 1.0 is above the review band
		s.Require().NotNil(sess.BestMatch)

		candidate, err := s.matches.Get(ctx, *sess.BestMatch)
		s.Require().NoError(err)
		s.Equal(gallery.ID, candidate.RecordID)
		s.Equal(c.ID, candidate.CaseID)
		s.Equal(id.SourceMorgue, candidate.Source)
	})

	s.Run("orthogonal gallery finds no match", func() {
		c := s.newCase()
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
			Return(embedding.Extraction{Vector: axisVector(5), Quality: 1.0}, nil)

		sess, err := s.service.Search(ctx, user, c.ID, []byte("probe-2"), true)
		s.Require().NoError(err)
		s.False(sess.MatchFound)
		s.Nil(sess.BestMatch)
	})

	s.Run("search emits an audit event", func() {
		c := s.newCase()
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
			Return(embedding.Extraction{Vector: axisVector(5), Quality: 1.0}, nil)

		sess, err := s.service.Search(ctx, user, c.ID, []byte("probe-3"), true)
		s.Require().NoError(err)

		events, err := s.auditLog.ListByCase(ctx, c.ID)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(audit.ActionSearchExecuted, last.Action)
		s.Equal(sess.ID.String(), last.Metadata["session_id"])
		s.Equal(last.ComputeHash(), last.Hash)
	})
}

// =============================================================================
// Closure Tests
// =============================================================================

func (s *SessionServiceSuite) runSearch(c casefile.Case, probe embedding.Vector) SearchSession {
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
		Return(embedding.Extraction{Vector: probe, Quality: 1.0}, nil)
	sess, err := s.service.Search(context.Background(), id.NewUserID(), c.ID, []byte(id.NewSessionID().String()), true)
	s.Require().NoError(err)
	return sess
}

func (s *SessionServiceSuite) TestClose() {
	ctx := context.Background()
	actor := id.NewUserID()

	s.Run("save closes without side effects", func() {
		c := s.newCase()
		s.addGalleryRecord(axisVector(0))
		sess := s.runSearch(c, axisVector(0))

		result, err := s.service.Close(ctx, sess.ID, actor, id.ClosureSave, "for later")
		s.Require().NoError(err)
		s.True(result.Session.Closed)
		s.Equal("Search result saved for later review.", result.Feedback)

		unchanged, err := s.caseService.Get(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(casefile.StatusReported, unchanged.Status)

		candidate, err := s.matches.Get(ctx, *sess.BestMatch)
		s.Require().NoError(err)
		s.Equal(match.StatusPendingReview, candidate.Status)
	})

	s.Run("double closure is rejected", func() {
		c := s.newCase()
		sess := s.runSearch(c, axisVector(7))

		_, err := s.service.Close(ctx, sess.ID, actor, id.ClosureNoMatch, "")
		s.Require().NoError(err)

		_, err = s.service.Close(ctx, sess.ID, actor, id.ClosureSearchAgain, "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSessionClosed))
	})

	s.Run("finalize verifies the match and closes the case", func() {
		c := s.newCase()
		s.addGalleryRecord(axisVector(0))
		sess := s.runSearch(c, axisVector(0))
		s.Require().NotNil(sess.BestMatch)

		result, err := s.service.Close(ctx, sess.ID, actor, id.ClosureFinalize, "confirmed by family")
		s.Require().NoError(err)
		s.Equal("Match finalized. The case has been marked as found.", result.Feedback)

		candidate, err := s.matches.Get(ctx, *sess.BestMatch)
		s.Require().NoError(err)
		s.Equal(match.StatusVerified, candidate.Status)
		s.False(candidate.RequiresHumanReview)

		closed, err := s.caseService.Get(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(casefile.StatusClosed, closed.Status)
		s.NotNil(closed.ResolvedAt)
	})

	s.Run("finalize on an already closed case still succeeds", func() {
		c := s.newCase()
		s.addGalleryRecord(axisVector(0))
		sess := s.runSearch(c, axisVector(0))
		s.Require().NotNil(sess.BestMatch)

		// The dual-signature path closes the case before the session does.
		_, err := s.caseService.Transition(ctx, c.ID, casefile.StatusUnderInvestigation, actor)
		s.Require().NoError(err)
		_, err = s.caseService.Transition(ctx, c.ID, casefile.StatusMatchFound, actor)
		s.Require().NoError(err)
		_, err = s.caseService.Sign(ctx, c.ID, actor, id.RoleFamilyMember)
		s.Require().NoError(err)
		signed, err := s.caseService.Sign(ctx, c.ID, actor, id.RolePoliceOfficer)
		s.Require().NoError(err)
		s.Require().True(signed.IsClosed)

		result, err := s.service.Close(ctx, sess.ID, actor, id.ClosureFinalize, "family confirmed in person")
		s.Require().NoError(err)
		s.True(result.Session.Closed)

		candidate, err := s.matches.Get(ctx, *sess.BestMatch)
		s.Require().NoError(err)
		s.Equal(match.StatusVerified, candidate.Status)

		still, err := s.caseService.Get(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(casefile.StatusClosed, still.Status)
	})

	s.Run("finalize without a match only closes the session", func() {
		c := s.newCase()
		sess := s.runSearch(c, axisVector(9))
		s.Require().Nil(sess.BestMatch)

		_, err := s.service.Close(ctx, sess.ID, actor, id.ClosureFinalize, "")
		s.Require().NoError(err)

		unchanged, err := s.caseService.Get(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(casefile.StatusReported, unchanged.Status)
	})

	s.Run("unknown session is not found", func() {
		_, err := s.service.Close(ctx, id.NewSessionID(), actor, id.ClosureSave, "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Closure Options Tests
// =============================================================================

func (s *SessionServiceSuite) TestClosureOptionsFor() {
	s.Equal([]string{"save", "finalize", "search_again"}, ClosureOptionsFor(SearchSession{MatchFound: true}))
	s.Equal([]string{"search_again", "no_match"}, ClosureOptionsFor(SearchSession{}))
}
