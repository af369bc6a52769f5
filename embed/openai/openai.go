// Package openai implements embed.Provider on the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// Model dimensions for the embedding models we accept.
const (
	defaultModel      = openai.EmbeddingModelTextEmbedding3Small
	defaultDimensions = 1536
)

// Provider calls the OpenAI embeddings endpoint.
type Provider struct {
	client     openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Option configures the provider.
type Option func(*Provider)

// WithModel overrides the embedding model. Dimensions must match what the
// model produces.
func WithModel(model string, dimensions int) Option {
	return func(p *Provider) {
		p.model = openai.EmbeddingModel(model)
		p.dimensions = dimensions
	}
}

// New creates a provider using text-embedding-3-small unless overridden.
func New(client openai.Client, opts ...Option) *Provider {
	p := &Provider{
		client:     client,
		model:      defaultModel,
		dimensions: defaultDimensions,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: p.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *Provider) Dimensions() int {
	return p.dimensions
}
