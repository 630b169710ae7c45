package record

import (
	"context"
	"time"

	"surasmart/internal/embedding"
	id "surasmart/pkg/domain"
)

// Store persists biometric records. Swap with concrete storage without
// touching the service.
//
// ListExtracted must return records in a fixed, reproducible order (creation
// time ascending, record ID as tie-breaker): the matcher's first-encountered
// tie-break depends on it.
type Store interface {
	Create(ctx context.Context, rec BiometricRecord) error
	Get(ctx context.Context, recordID id.RecordID) (BiometricRecord, error)
	SetExtracted(ctx context.Context, recordID id.RecordID, vec embedding.Vector, quality float64, at time.Time) error
	SetFailed(ctx context.Context, recordID id.RecordID, reason string, at time.Time) error
	ListExtracted(ctx context.Context) ([]BiometricRecord, error)
	// PurgeByCase nulls embeddings and marks records purged for a resolved
	// case whose retention has expired. Returns the number of purged rows.
	PurgeByCase(ctx context.Context, caseID id.CaseID) (int, error)
}
