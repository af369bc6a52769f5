// Package openai implements llm.Model on the OpenAI Chat Completions API.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/llm"
)

const defaultModel = openai.ChatModelGPT4o

// Model streams completions from OpenAI.
type Model struct {
	client openai.Client
	model  openai.ChatModel
}

// Option configures the model.
type Option func(*Model)

// WithModel overrides the chat model id.
func WithModel(model string) Option {
	return func(m *Model) {
		m.model = openai.ChatModel(model)
	}
}

// New creates an OpenAI-backed model.
func New(client openai.Client, opts ...Option) *Model {
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

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
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

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a memory compression assistant."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty summary response", core.ErrModelUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

func (m *Model) params(req llm.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature >= 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}
