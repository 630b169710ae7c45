package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorOf(values ...float32) Vector {
	var v Vector
	copy(v[:], values)
	return v
}

func TestFromSlice(t *testing.T) {
	t.Run("rejects wrong dimension", func(t *testing.T) {
		_, err := FromSlice(make([]float32, 128))
		require.Error(t, err)
	})

	t.Run("accepts exact dimension", func(t *testing.T) {
		raw := make([]float32, Dim)
		raw[0] = 0.25
		v, err := FromSlice(raw)
		require.NoError(t, err)
		assert.InDelta(t, 0.25, v[0], 1e-9)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := vectorOf(0.3, -0.7, 0.12, 4)
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
	})

	t.Run("opposite vectors clamp to 0", func(t *testing.T) {
		v := vectorOf(1, 2, 3)
		var neg Vector
		for i := range v {
			neg[i] = -v[i]
		}
		assert.Equal(t, 0.0, CosineSimilarity(v, neg))
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		a := vectorOf(1, 0)
		b := vectorOf(0, 1)
		assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	})

	t.Run("zero vector scores 0 against anything", func(t *testing.T) {
		var zero Vector
		v := vectorOf(1, 2, 3)
		assert.Equal(t, 0.0, CosineSimilarity(zero, v))
		assert.Equal(t, 0.0, CosineSimilarity(v, zero))
		assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
	})

	t.Run("distance is the complement", func(t *testing.T) {
		assert.InDelta(t, 0.25, Distance(0.75), 1e-9)
	})
}
