package session

import (
	"context"
	"sync"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map guarded by a mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]SearchSession
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]SearchSession)}
}

func (s *InMemoryStore) Save(_ context.Context, sess SearchSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (SearchSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return SearchSession{}, sentinel.ErrNotFound
	}
	return sess, nil
}

func (s *InMemoryStore) Close(_ context.Context, sessionID id.SessionID, fn func(sess *SearchSession) error) (SearchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return SearchSession{}, sentinel.ErrNotFound
	}
	if sess.Closed {
		return SearchSession{}, sentinel.ErrInvalidState
	}
	if err := fn(&sess); err != nil {
		return SearchSession{}, err
	}
	sess.Closed = true
	s.sessions[sessionID] = sess
	return sess, nil
}
