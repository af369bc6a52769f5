// Package llm defines the language-model capability: streamed chat
// generation and one-shot summarization. Backends live in the anthropic and
// openai subpackages.
package llm

import (
	"context"

	"github.com/recallhq/recall-go-sdk/core"
)

// Request describes one generation call.
type Request struct {
	// System is the system prompt, already assembled by the orchestrator.
	System string

	// Messages is the conversation so far, oldest first, ending with the
	// user's current message.
	Messages []core.Message

	// MaxTokens caps the response length. Zero uses the backend default.
	MaxTokens int

	// Temperature in [0, 2]; negative uses the backend default.
	Temperature float64
}

// ChunkFunc receives each streamed text delta in arrival order. Returning
// from GenerateStream implies no further calls.
type ChunkFunc func(text string)

// Model is the generation capability the orchestrator and the compression
// engine consume.
type Model interface {
	// GenerateStream streams a completion, invoking onChunk per text delta,
	// and returns the full concatenated response text.
	GenerateStream(ctx context.Context, req Request, onChunk ChunkFunc) (string, error)

	// Summarize condenses the given texts into a single paragraph-scale
	// summary preserving salient facts.
	Summarize(ctx context.Context, texts []string) (string, error)
}

// SummaryPrompt is the shared instruction both backends use for Summarize.
const SummaryPrompt = `Summarize the following memories into key insights and facts.
Preserve important details about the user's preferences, context, and relationships.
Provide a concise summary that captures the essential information.`
