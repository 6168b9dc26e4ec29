package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		assert.InDelta(t, 32.0, Dot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	})

	t.Run("Symmetry", func(t *testing.T) {
		a := []float32{0.3, -0.2, 0.9}
		b := []float32{-0.5, 0.1, 0.4}
		assert.Equal(t, Dot(a, b), Dot(b, a))
	})
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 27.0, SquaredL2([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	assert.Zero(t, SquaredL2([]float32{1, 2, 3}, []float32{1, 2, 3}))
}

func TestCosine(t *testing.T) {
	t.Run("SelfSimilarity", func(t *testing.T) {
		v, ok := NormalizeL2Copy([]float32{3, 4, 12})
		require.True(t, ok)
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-6)
	})

	t.Run("Symmetry", func(t *testing.T) {
		a := []float32{1, 0, 2}
		b := []float32{0, 3, 1}
		assert.Equal(t, Cosine(a, b), Cosine(b, a))
	})

	t.Run("Orthogonal", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	})
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		require.True(t, NormalizeL2InPlace(v))
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
		assert.InDelta(t, 1.0, Dot(v, v), 1e-6)
	})

	t.Run("ZeroNorm", func(t *testing.T) {
		assert.False(t, NormalizeL2InPlace([]float32{0, 0, 0}))
		_, ok := NormalizeL2Copy([]float32{0, 0, 0})
		assert.False(t, ok)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.False(t, NormalizeL2InPlace(nil))
	})

	t.Run("CopyLeavesSourceUntouched", func(t *testing.T) {
		src := []float32{3, 4}
		dst, ok := NormalizeL2Copy(src)
		require.True(t, ok)
		assert.Equal(t, []float32{3, 4}, src)
		assert.NotEqual(t, src, dst)
	})
}
