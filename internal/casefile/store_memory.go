package casefile

import (
	"context"
	"sync"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// InMemoryStore keeps cases in a map guarded by a mutex. The single lock
// serializes Mutate calls, which is exactly the per-case atomicity the state
// machine needs.
type InMemoryStore struct {
	mu    sync.RWMutex
	cases map[id.CaseID]Case
}

// NewInMemoryStore creates an empty in-memory case store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cases: make(map[id.CaseID]Case)}
}

func (s *InMemoryStore) Create(_ context.Context, c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, caseID id.CaseID) (Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return Case{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) Mutate(_ context.Context, caseID id.CaseID, fn func(c *Case) error) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[caseID]
	if !ok {
		return Case{}, sentinel.ErrNotFound
	}
	if err := fn(&c); err != nil {
		return Case{}, err
	}
	s.cases[caseID] = c
	return c, nil
}
