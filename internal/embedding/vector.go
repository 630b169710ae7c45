// Package embedding defines the fixed-dimension face embedding vector and the
// similarity measure used as the pipeline's confidence proxy.
package embedding

import (
	"math"

	dErrors "surasmart/pkg/domain-errors"
)

// Dim is the embedding dimension, fixed for the whole system. Every stored
// and queried vector has exactly this many components; length mismatches are
// rejected at the ingestion boundary.
const Dim = 512

// Vector is a face embedding. The array type makes the dimension a
// compile-time fact rather than a runtime convention.
type Vector [Dim]float32

// FromSlice validates a raw vector's length and copies it into a Vector.
func FromSlice(raw []float32) (Vector, error) {
	var v Vector
	if len(raw) != Dim {
		return v, dErrors.Newf(dErrors.CodeValidation, "embedding must have %d components, got %d", Dim, len(raw))
	}
	copy(v[:], raw)
	return v, nil
}

// Slice returns the vector as a []float32 for storage drivers.
func (v Vector) Slice() []float32 {
	out := make([]float32, Dim)
	copy(out, v[:])
	return out
}

// CosineSimilarity returns how alike two embeddings are, in [0, 1].
// 1.0 means identical direction. Negative similarities fold to 0: the system
// only ever reports "how alike", never "how opposite". A zero-norm vector has
// no direction, so similarity is defined as 0.
func CosineSimilarity(a, b Vector) float64 {
	var dot, normA, normB float64
	for i := 0; i < Dim; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [0, 1]; the upper bound also absorbs floating point drift.
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

// Distance is the complement of similarity, persisted alongside confidence.
func Distance(similarity float64) float64 {
	return 1 - similarity
}
