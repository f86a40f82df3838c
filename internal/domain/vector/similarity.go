// Package vector holds the numeric primitives shared by retrieval and matching.
package vector

import (
	"math"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Dot returns the dot product of two equal-length vectors, accumulated in float64.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns the cosine similarity of a and b.
// Zero when either vector has zero norm; never NaN for finite input.
func Cosine(a, b []float32) float64 {
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// CosineWithNorms is Cosine with precomputed norms. Callers scoring one vector against many
// use it to avoid recomputing norms; the arithmetic is identical to Cosine.
func CosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	s := Dot(a, b) / (normA * normB)
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// Norms returns the L2 norm of every row.
func Norms(rows [][]float32) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = Norm(r)
	}
	return out
}

// CheckDims verifies every row has exactly dim components.
// dim <= 0 pins the dimension to the first row.
func CheckDims(rows [][]float32, dim int) (int, error) {
	for _, r := range rows {
		if dim <= 0 {
			dim = len(r)
		}
		if len(r) != dim || len(r) == 0 {
			return dim, domain.NewDimMismatch(dim, len(r))
		}
	}
	return dim, nil
}
