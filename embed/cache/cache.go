// Package cache wraps an embed.Provider with a ristretto cache so repeated
// texts (re-indexed chunks, recurring queries) skip the backend call.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/recallhq/recall-go-sdk/embed"
)

// Provider is a caching decorator around another embed.Provider.
type Provider struct {
	inner embed.Provider
	cache *ristretto.Cache
}

// New creates a caching provider. maxBytes bounds the cache cost budget;
// each entry is charged its vector size.
func New(inner embed.Provider, maxBytes int64) (*Provider, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Provider{inner: inner, cache: c}, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok && len(vec) == p.inner.Dimensions() {
			return vec, nil
		}
	}
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(text, vec, int64(4*len(vec)))
	return vec, nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := p.cache.Get(t); ok {
			if vec, ok := v.([]float32); ok && len(vec) == p.inner.Dimensions() {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := p.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for k, vec := range vecs {
		out[missingIdx[k]] = vec
		p.cache.Set(missing[k], vec, int64(4*len(vec)))
	}
	return out, nil
}

func (p *Provider) Dimensions() int {
	return p.inner.Dimensions()
}

// Close releases the cache's background goroutines.
func (p *Provider) Close() {
	p.cache.Close()
}
