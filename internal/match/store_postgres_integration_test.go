//go:build integration

package match_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"surasmart/internal/match"
	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
	"surasmart/pkg/testutil/containers"
)

type MatchPostgresSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *match.PostgresStore
}

func TestMatchPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MatchPostgresSuite))
}

func (s *MatchPostgresSuite) SetupSuite() {
	postgres := containers.NewPostgresContainer(s.T())
	s.pool = postgres.NewPool(s.T())
	s.store = match.NewPostgresStore(s.pool)
}

func (s *MatchPostgresSuite) SetupTest() {
	err := containers.TruncateTables(context.Background(), s.pool, "match_candidates")
	s.Require().NoError(err)
}

func newStoredCandidate(caseID id.CaseID, recordID id.RecordID, confidence float64) match.MatchCandidate {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return match.MatchCandidate{
		ID:                  id.NewMatchID(),
		CaseID:              caseID,
		RecordID:            recordID,
		Confidence:          confidence,
		Distance:            1 - confidence,
		Source:              id.SourceMorgue,
		Status:              match.StatusPendingReview,
		RequiresHumanReview: confidence >= 0.90 && confidence < 0.98,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// ============================================================
// Upsert
// ============================================================

func (s *MatchPostgresSuite) TestUpsertCreatesThenUpdatesInPlace() {
	ctx := context.Background()
	caseID := id.NewCaseID()
	recordID := id.NewRecordID()

	first := newStoredCandidate(caseID, recordID, 0.93)
	created, err := s.store.Upsert(ctx, first)
	s.Require().NoError(err)
	s.Equal(first.ID, created.ID)
	s.True(created.RequiresHumanReview)

	// A re-search of the same pair arrives with a fresh candidate ID and a
	// different score; the row must be updated, not duplicated.
	second := newStoredCandidate(caseID, recordID, 0.99)
	second.RequiresHumanReview = false
	updated, err := s.store.Upsert(ctx, second)
	s.Require().NoError(err)

	s.Equal(first.ID, updated.ID, "original candidate ID survives the upsert")
	s.Equal(0.99, updated.Confidence)
	s.InDelta(0.01, updated.Distance, 1e-9)
	s.False(updated.RequiresHumanReview)
	s.Equal(match.StatusPendingReview, updated.Status)

	rows, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *MatchPostgresSuite) TestConcurrentUpsertsSamePairYieldOneRow() {
	ctx := context.Background()
	caseID := id.NewCaseID()
	recordID := id.NewRecordID()
	const goroutines = 20

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := newStoredCandidate(caseID, recordID, 0.90+float64(i)*0.001)
			if _, err := s.store.Upsert(ctx, candidate); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Zero(failures.Load(), "every upsert should succeed")

	rows, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Len(rows, 1, "concurrent searches for the same pair must converge on one row")
}

func (s *MatchPostgresSuite) TestUpsertKeepsDistinctPairsApart() {
	ctx := context.Background()
	caseID := id.NewCaseID()

	_, err := s.store.Upsert(ctx, newStoredCandidate(caseID, id.NewRecordID(), 0.80))
	s.Require().NoError(err)
	_, err = s.store.Upsert(ctx, newStoredCandidate(caseID, id.NewRecordID(), 0.85))
	s.Require().NoError(err)

	rows, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Len(rows, 2)
}

// ============================================================
// Decisions
// ============================================================

func (s *MatchPostgresSuite) TestApplyDecisionSetsVerdictAndClearsFlag() {
	ctx := context.Background()
	candidate := newStoredCandidate(id.NewCaseID(), id.NewRecordID(), 0.95)
	stored, err := s.store.Upsert(ctx, candidate)
	s.Require().NoError(err)
	s.Require().True(stored.RequiresHumanReview)

	verifier := id.NewUserID()
	decidedAt := time.Now().UTC().Truncate(time.Microsecond)
	decided, err := s.store.ApplyDecision(ctx, stored.ID, match.Decision{
		Status:     match.StatusVerified,
		VerifiedBy: verifier,
		VerifiedAt: decidedAt,
		Notes:      "confirmed by family liaison",
	})
	s.Require().NoError(err)

	s.Equal(match.StatusVerified, decided.Status)
	s.False(decided.RequiresHumanReview)
	s.Require().NotNil(decided.VerifiedBy)
	s.Equal(verifier, *decided.VerifiedBy)
	s.Require().NotNil(decided.VerifiedAt)
	s.WithinDuration(decidedAt, *decided.VerifiedAt, time.Millisecond)
	s.Equal("confirmed by family liaison", decided.VerificationNotes)
}

func (s *MatchPostgresSuite) TestApplyDecisionMissingCandidate() {
	_, err := s.store.ApplyDecision(context.Background(), id.NewMatchID(), match.Decision{
		Status:     match.StatusFalsePositive,
		VerifiedBy: id.NewUserID(),
		VerifiedAt: time.Now().UTC(),
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MatchPostgresSuite) TestGetMissingCandidate() {
	_, err := s.store.Get(context.Background(), id.NewMatchID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MatchPostgresSuite) TestListDecidedExcludesPending() {
	ctx := context.Background()
	caseID := id.NewCaseID()

	verified, err := s.store.Upsert(ctx, newStoredCandidate(caseID, id.NewRecordID(), 0.99))
	s.Require().NoError(err)
	rejected, err := s.store.Upsert(ctx, newStoredCandidate(caseID, id.NewRecordID(), 0.91))
	s.Require().NoError(err)
	_, err = s.store.Upsert(ctx, newStoredCandidate(caseID, id.NewRecordID(), 0.92))
	s.Require().NoError(err)

	now := time.Now().UTC()
	_, err = s.store.ApplyDecision(ctx, verified.ID, match.Decision{Status: match.StatusVerified, VerifiedBy: id.NewUserID(), VerifiedAt: now})
	s.Require().NoError(err)
	_, err = s.store.ApplyDecision(ctx, rejected.ID, match.Decision{Status: match.StatusFalsePositive, VerifiedBy: id.NewUserID(), VerifiedAt: now})
	s.Require().NoError(err)

	decided, err := s.store.ListDecided(ctx)
	s.Require().NoError(err)
	s.Require().Len(decided, 2)
	for _, candidate := range decided {
		s.NotEqual(match.StatusPendingReview, candidate.Status)
	}
}
