package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75, 0}
	got := Deserialize(Serialize(vec))
	assert.Equal(t, vec, got, "roundtrip should preserve every element")
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9, "identical vectors")
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9, "orthogonal vectors")
	assert.Equal(t, 0.0, Cosine(a, []float32{1, 0}), "mismatched dimensions")
	assert.Equal(t, 0.0, Cosine(a, []float32{0, 0, 0}), "zero vector")
}

func TestCosineWithNormsMatchesCosine(t *testing.T) {
	a := []float32{0.3, 0.7, -0.2}
	b := []float32{0.1, 0.9, 0.4}
	assert.InDelta(t, Cosine(a, b), CosineWithNorms(a, b, Norm(a), Norm(b)), 1e-12)
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 2}, {3, 4}})
	assert.Equal(t, []float32{2, 3}, got)
	assert.Nil(t, Mean(nil))
}

func TestWeightedMean(t *testing.T) {
	got := WeightedMean([]float32{0, 0}, 3, []float32{4, 8}, 1)
	assert.Equal(t, []float32{1, 2}, got, "3:1 blend")
	assert.Nil(t, WeightedMean([]float32{1}, 0, []float32{2}, 0), "zero total weight")
}

func TestScanIndexTopK(t *testing.T) {
	idx := NewScanIndex()
	idx.Add(1, []float32{1, 0})
	idx.Add(2, []float32{0, 1})
	idx.Add(3, []float32{1, 0.1})

	matches := idx.TopK([]float32{1, 0}, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(1), matches[0].ID)
	assert.Equal(t, uint64(3), matches[1].ID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestScanIndexTopKTieBreaksByID(t *testing.T) {
	idx := NewScanIndex()
	idx.Add(9, []float32{1, 0})
	idx.Add(4, []float32{1, 0})

	matches := idx.TopK([]float32{1, 0}, 5)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(4), matches[0].ID, "equal similarity orders by id ascending")
}

func TestScanIndexEmpty(t *testing.T) {
	idx := NewScanIndex()
	assert.Nil(t, idx.TopK([]float32{1}, 3))
	assert.Equal(t, 0, idx.Len())
}
