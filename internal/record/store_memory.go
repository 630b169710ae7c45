package record

import (
	"context"
	"sort"
	"sync"
	"time"

	"surasmart/internal/embedding"
	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// InMemoryStore keeps records in maps guarded by a mutex. Used by unit tests
// and local runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	records      map[id.RecordID]BiometricRecord
	fingerprints map[string]id.RecordID
}

// NewInMemoryStore creates an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:      make(map[id.RecordID]BiometricRecord),
		fingerprints: make(map[string]id.RecordID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec BiometricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fingerprints[rec.Fingerprint]; exists {
		return sentinel.ErrConflict
	}
	s.records[rec.ID] = rec
	s.fingerprints[rec.Fingerprint] = rec.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, recordID id.RecordID) (BiometricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return BiometricRecord{}, sentinel.ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) SetExtracted(_ context.Context, recordID id.RecordID, vec embedding.Vector, quality float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	rec.Embedding = &vec
	rec.Quality = quality
	rec.Status = StatusExtracted
	rec.ProcessedAt = &at
	s.records[recordID] = rec
	return nil
}

func (s *InMemoryStore) SetFailed(_ context.Context, recordID id.RecordID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	rec.Status = StatusFailed
	rec.ProcessingError = reason
	rec.ProcessedAt = &at
	s.records[recordID] = rec
	return nil
}

// ListExtracted returns extraction-complete records ordered by creation time,
// then record ID, so scans are reproducible for the same store state.
func (s *InMemoryStore) ListExtracted(_ context.Context) ([]BiometricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BiometricRecord
	for _, rec := range s.records {
		if rec.Status == StatusExtracted && rec.Embedding != nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) PurgeByCase(_ context.Context, caseID id.CaseID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, rec := range s.records {
		if rec.CaseID != caseID || rec.Status == StatusPurged {
			continue
		}
		rec.Embedding = nil
		rec.Quality = 0
		rec.Status = StatusPurged
		s.records[key] = rec
		purged++
	}
	return purged, nil
}
