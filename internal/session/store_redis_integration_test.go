//go:build integration

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"surasmart/internal/session"
	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
	"surasmart/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func newStoredSession() session.SearchSession {
	return session.SearchSession{
		ID:                id.NewSessionID(),
		CaseID:            id.NewCaseID(),
		UserID:            id.NewUserID(),
		ConsentGiven:      true,
		CandidatesScanned: 12,
		MatchFound:        true,
		Confidence:        0.9731,
		RequiresReview:    true,
		DeviceLabel:       "Android / Chrome Mobile",
		CreatedAt:         time.Now().UTC().Truncate(time.Millisecond),
		ElapsedMillis:     842,
	}
}

func (s *RedisStoreSuite) TestSaveAndGetRoundTrip() {
	ctx := context.Background()
	sess := newStoredSession()
	bestMatch := id.NewMatchID()
	sess.BestMatch = &bestMatch

	s.Require().NoError(s.store.Save(ctx, sess))

	stored, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.ID, stored.ID)
	s.Equal(sess.CaseID, stored.CaseID)
	s.Equal(sess.UserID, stored.UserID)
	s.True(stored.ConsentGiven)
	s.Equal(12, stored.CandidatesScanned)
	s.True(stored.MatchFound)
	s.Equal(0.9731, stored.Confidence)
	s.True(stored.RequiresReview)
	s.Require().NotNil(stored.BestMatch)
	s.Equal(bestMatch, *stored.BestMatch)
	s.Equal("Android / Chrome Mobile", stored.DeviceLabel)
	s.False(stored.Closed)
	s.Equal(sess.ElapsedMillis, stored.ElapsedMillis)
}

func (s *RedisStoreSuite) TestGetMissingSession() {
	_, err := s.store.Get(context.Background(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestCloseAppliesCallbackAndPersists() {
	ctx := context.Background()
	sess := newStoredSession()
	s.Require().NoError(s.store.Save(ctx, sess))

	closedAt := time.Now().UTC().Truncate(time.Millisecond)
	closed, err := s.store.Close(ctx, sess.ID, func(sess *session.SearchSession) error {
		sess.ClosureAction = id.ClosureSave
		sess.ClosureNotes = "holding for the liaison"
		sess.ClosedAt = &closedAt
		return nil
	})
	s.Require().NoError(err)
	s.True(closed.Closed)
	s.Equal(id.ClosureSave, closed.ClosureAction)

	stored, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.True(stored.Closed)
	s.Equal(id.ClosureSave, stored.ClosureAction)
	s.Equal("holding for the liaison", stored.ClosureNotes)
	s.Require().NotNil(stored.ClosedAt)
	s.Equal(closedAt.UnixMilli(), stored.ClosedAt.UnixMilli())
}

func (s *RedisStoreSuite) TestCloseTwiceRejected() {
	ctx := context.Background()
	sess := newStoredSession()
	s.Require().NoError(s.store.Save(ctx, sess))

	_, err := s.store.Close(ctx, sess.ID, func(sess *session.SearchSession) error {
		sess.ClosureAction = id.ClosureSearchAgain
		return nil
	})
	s.Require().NoError(err)

	_, err = s.store.Close(ctx, sess.ID, func(sess *session.SearchSession) error {
		sess.ClosureAction = id.ClosureNoMatch
		return nil
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *RedisStoreSuite) TestCloseMissingSession() {
	_, err := s.store.Close(context.Background(), id.NewSessionID(), func(sess *session.SearchSession) error {
		return nil
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestCloseCallbackErrorDoesNotPersist verifies that a rejected closure leaves
// the stored session open.
func (s *RedisStoreSuite) TestCloseCallbackErrorDoesNotPersist() {
	ctx := context.Background()
	sess := newStoredSession()
	s.Require().NoError(s.store.Save(ctx, sess))

	callbackErr := errors.New("closure rejected")
	_, err := s.store.Close(ctx, sess.ID, func(sess *session.SearchSession) error {
		sess.ClosureAction = id.ClosureFinalize
		return callbackErr
	})
	s.ErrorIs(err, callbackErr)

	stored, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.False(stored.Closed)
	s.Empty(stored.ClosureAction.String())
}

// TestConcurrentCloseExactlyOnce drives many goroutines at the same session;
// the WATCH-based transaction must let exactly one closure through.
func (s *RedisStoreSuite) TestConcurrentCloseExactlyOnce() {
	ctx := context.Background()
	sess := newStoredSession()
	s.Require().NoError(s.store.Save(ctx, sess))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var alreadyClosed atomic.Int32
	var otherErrors atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Close(ctx, sess.ID, func(sess *session.SearchSession) error {
				sess.ClosureAction = id.ClosureSearchAgain
				return nil
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				alreadyClosed.Add(1)
			default:
				otherErrors.Add(1)
			}
		}()
	}
	wg.Wait()

	// Contention retries can exhaust under heavy overlap; those surface as
	// distinct errors, never as a second successful closure.
	s.Equal(int32(1), successCount.Load(), "exactly one closure should win")
	s.Equal(int32(goroutines), successCount.Load()+alreadyClosed.Load()+otherErrors.Load())

	stored, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.True(stored.Closed)
	s.Equal(id.ClosureSearchAgain, stored.ClosureAction)
}
