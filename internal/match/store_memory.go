package match

import (
	"context"
	"sort"
	"sync"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

type pairKey struct {
	caseID   id.CaseID
	recordID id.RecordID
}

// InMemoryStore keeps candidates in maps guarded by a mutex. The single lock
// makes Upsert atomic for concurrent searches of the same pair.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.MatchID]MatchCandidate
	byPair map[pairKey]id.MatchID
}

// NewInMemoryStore creates an empty in-memory match store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.MatchID]MatchCandidate),
		byPair: make(map[pairKey]id.MatchID),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, candidate MatchCandidate) (MatchCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{caseID: candidate.CaseID, recordID: candidate.RecordID}
	if existingID, ok := s.byPair[key]; ok {
		existing := s.byID[existingID]
		existing.Confidence = candidate.Confidence
		existing.Distance = candidate.Distance
		existing.RequiresHumanReview = candidate.RequiresHumanReview
		existing.UpdatedAt = candidate.UpdatedAt
		s.byID[existingID] = existing
		return existing, nil
	}

	s.byID[candidate.ID] = candidate
	s.byPair[key] = candidate.ID
	return candidate, nil
}

func (s *InMemoryStore) Get(_ context.Context, matchID id.MatchID) (MatchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidate, ok := s.byID[matchID]
	if !ok {
		return MatchCandidate{}, sentinel.ErrNotFound
	}
	return candidate, nil
}

func (s *InMemoryStore) ApplyDecision(_ context.Context, matchID id.MatchID, decision Decision) (MatchCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.byID[matchID]
	if !ok {
		return MatchCandidate{}, sentinel.ErrNotFound
	}
	candidate.Status = decision.Status
	candidate.RequiresHumanReview = false
	verifier := decision.VerifiedBy
	candidate.VerifiedBy = &verifier
	verifiedAt := decision.VerifiedAt
	candidate.VerifiedAt = &verifiedAt
	candidate.VerificationNotes = decision.Notes
	candidate.UpdatedAt = decision.VerifiedAt
	s.byID[matchID] = candidate
	return candidate, nil
}

func (s *InMemoryStore) ListByCase(_ context.Context, caseID id.CaseID) ([]MatchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []MatchCandidate
	for _, candidate := range s.byID {
		if candidate.CaseID == caseID {
			out = append(out, candidate)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemoryStore) ListDecided(_ context.Context) ([]MatchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []MatchCandidate
	for _, candidate := range s.byID {
		if candidate.Status != StatusPendingReview {
			out = append(out, candidate)
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(candidates []MatchCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
}
