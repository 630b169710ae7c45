// Package record manages biometric records: stored face embeddings owned by a
// case. Records are created on upload, receive their embedding exactly once
// from the extractor, and are immutable afterwards except for the legally
// mandated purge.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"surasmart/internal/embedding"
	id "surasmart/pkg/domain"
)

// Status is the extraction lifecycle of a biometric record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExtracted Status = "extracted"
	StatusFailed    Status = "failed"
	StatusPurged    Status = "purged"
)

// BiometricRecord is one stored embedding. Embedding is nil until extraction
// completes and again after purge.
type BiometricRecord struct {
	ID          id.RecordID
	CaseID      id.CaseID
	Embedding   *embedding.Vector
	Fingerprint string
	// Source tags which external database contributed the image; it travels
	// onto any match candidate this record produces.
	Source          id.MatchSource
	Status          Status
	Quality         float64
	ProcessingError string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// Fingerprint computes the content fingerprint used for deduplication:
// sha256 over the raw image bytes.
func Fingerprint(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
