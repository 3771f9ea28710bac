package qaeval

import (
	"errors"
	"math"
)

var (
	errEmptyVector        = errors.New("vectors cannot be empty")
	errDimensionsMismatch = errors.New("vectors must have the same dimension")
)

// CosineSimilarity calculates the cosine similarity between two embeddings.
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errEmptyVector
	}
	if len(a) != len(b) {
		return 0, errDimensionsMismatch
	}

	var dot, sumA, sumB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		sumA += float64(a[i]) * float64(a[i])
		sumB += float64(b[i]) * float64(b[i])
	}
	if sumA == 0 || sumB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(sumA) * math.Sqrt(sumB)), nil
}
