// Package vector holds the float32 vector math shared by every engine
// component: cosine similarity, norms, the wire encoding used by the cache
// backend, and an exact top-k similarity scan.
package vector

import (
	"encoding/binary"
	"math"
)

// Serialize converts a float32 slice to bytes (little-endian).
func Serialize(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Deserialize converts bytes back to a float32 slice.
func Deserialize(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// Cosine computes cosine similarity between two vectors.
// Mismatched dimensions or a zero vector yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineWithNorms computes cosine similarity with pre-calculated L2 norms.
func CosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

// Norm computes the L2 norm of a vector.
func Norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Mean returns the element-wise mean of the given vectors. Useful for topic
// centroids. Returns nil for an empty input.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range out {
			out[i] += v[i]
		}
	}
	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}

// WeightedMean returns the weighted element-wise mean of two vectors.
// Used when merging two topic centroids by artifact count.
func WeightedMean(a []float32, wa float64, b []float32, wb float64) []float32 {
	if len(a) != len(b) || wa+wb == 0 {
		return nil
	}
	out := make([]float32, len(a))
	total := wa + wb
	for i := range a {
		out[i] = float32((float64(a[i])*wa + float64(b[i])*wb) / total)
	}
	return out
}
