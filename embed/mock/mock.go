// Package mock provides a deterministic embedder for testing without model
// files or API keys.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/recallhq/recall-go-sdk/embed"
)

// Embedder generates deterministic embeddings from a text hash. Identical
// texts always produce identical vectors, which is what the store and
// assembler tests rely on.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the given dimension (defaults to 384,
// matching all-MiniLM-L6-v2).
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Embedder{dimensions: dimensions}
}

func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return embed.Normalize(embedding), nil
}

func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *Embedder) Dimensions() int {
	return m.dimensions
}
