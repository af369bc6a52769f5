// Package embed defines the embedding provider interface and shared vector
// helpers. Backends live in subpackages: openai (API), onnx (local model,
// build-tagged), mock (testing).
//
// All vectors produced by a Provider have the same fixed dimension. An index
// or memory store created against one provider must not receive vectors from
// a provider with a different dimension.
package embed

import (
	"context"
	"math"
)

// Provider converts text to fixed-dimension vectors.
type Provider interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one call where the backend
	// supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Normalize converts a vector to unit length in place-safe fashion.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}

// Cosine returns the cosine similarity of two vectors. Unit vectors reduce
// this to a dot product.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}
