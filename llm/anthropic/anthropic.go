// Package anthropic implements llm.Model on the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/llm"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// Model streams completions from Claude.
type Model struct {
	client *anthropic.Client
	model  anthropic.Model
}

// Option configures the model.
type Option func(*Model)

// WithModel overrides the Claude model id.
func WithModel(model string) Option {
	return func(m *Model) {
		m.model = anthropic.Model(model)
	}
}

// New creates a Claude-backed model.
func New(client *anthropic.Client, opts ...Option) *Model {
	m := &Model{
		client: client,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateStream streams a completion, invoking onChunk per text delta.
func (m *Model) GenerateStream(ctx context.Context, req llm.Request, onChunk llm.ChunkFunc) (string, error) {
	params := m.params(req)

	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				full.WriteString(delta.Text)
				if onChunk != nil {
					onChunk(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return full.String(), fmt.Errorf("%w: %v", core.ErrModelUnavailable, err)
	}
	return full.String(), nil
}

// Summarize condenses texts with a non-streaming call.
func (m *Model) Summarize(ctx context.Context, texts []string) (string, error) {
	prompt := llm.SummaryPrompt + "\n\nMemories:\n" + strings.Join(texts, "\n\n")

	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrModelUnavailable, err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%w: empty summary response", core.ErrModelUnavailable)
	}
	return out.String(), nil
}

func (m *Model) params(req llm.Request) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature >= 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}
