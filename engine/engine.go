// Package engine drives one request/response cycle: it assembles a bounded
// context, detects intent, streams model output, and multiplexes the whole
// trace as a strictly-ordered AgentEvent sequence. After a successful turn it
// fires the persistence, indexing, memory, and compression hooks without
// blocking the caller.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-go-sdk/assembler"
	"github.com/recallhq/recall-go-sdk/compress"
	"github.com/recallhq/recall-go-sdk/convstore"
	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/embed"
	"github.com/recallhq/recall-go-sdk/ingest"
	"github.com/recallhq/recall-go-sdk/intent"
	"github.com/recallhq/recall-go-sdk/llm"
	"github.com/recallhq/recall-go-sdk/memstore"
	"github.com/recallhq/recall-go-sdk/retrieval"
	"github.com/recallhq/recall-go-sdk/stats"
)

// Config tunes one orchestrator.
type Config struct {
	// HistoryLimit caps how many prior turns are loaded when the caller
	// provides none.
	HistoryLimit int

	// MaxTokens caps the model response; zero uses the backend default.
	MaxTokens int

	// Temperature for generation; negative uses the backend default.
	Temperature float64

	// HookTimeout bounds the post-turn hook batch.
	HookTimeout time.Duration
}

// DefaultConfig is the production tuning.
var DefaultConfig = Config{
	HistoryLimit: 10,
	Temperature:  0.7,
	HookTimeout:  60 * time.Second,
}

// Request is one user turn.
type Request struct {
	UserMessage    string
	UserID         string
	ConversationID string

	// History is the prior dialogue, oldest first. When nil and a
	// conversation log is wired, recent turns are loaded from it.
	History []core.Message
}

// Orchestrator coordinates intent detection, context assembly, and streamed
// generation.
type Orchestrator struct {
	model      llm.Model
	assembler  *assembler.Assembler
	detector   *intent.Detector
	index      retrieval.Index
	memories   memstore.Store
	embedder   embed.Provider
	threads    convstore.Log
	indexer    *ingest.Indexer
	compressor *compress.Engine
	reporter   stats.Reporter
	cfg        Config
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		if cfg.HistoryLimit <= 0 {
			cfg.HistoryLimit = DefaultConfig.HistoryLimit
		}
		if cfg.HookTimeout <= 0 {
			cfg.HookTimeout = DefaultConfig.HookTimeout
		}
		o.cfg = cfg
	}
}

// WithIntentDetector sets the intent detector. Without one, queries are
// treated as general chat.
func WithIntentDetector(d *intent.Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithRetrievalIndex wires the document index, enabling the document tools
// and post-turn conversation indexing.
func WithRetrievalIndex(idx retrieval.Index) Option {
	return func(o *Orchestrator) { o.index = idx }
}

// WithMemory wires the memory store and the embedder used to record new
// memories after each turn.
func WithMemory(store memstore.Store, embedder embed.Provider) Option {
	return func(o *Orchestrator) {
		o.memories = store
		o.embedder = embedder
	}
}

// WithConversationLog wires durable thread persistence.
func WithConversationLog(l convstore.Log) Option {
	return func(o *Orchestrator) { o.threads = l }
}

// WithIndexer wires post-turn conversation indexing.
func WithIndexer(i *ingest.Indexer) Option {
	return func(o *Orchestrator) { o.indexer = i }
}

// WithCompressor wires the post-turn compression check.
func WithCompressor(c *compress.Engine) Option {
	return func(o *Orchestrator) { o.compressor = c }
}

// WithStats sets the telemetry reporter.
func WithStats(r stats.Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// New creates an orchestrator over a model and an assembler. Everything else
// is optional; absent collaborators disable their stage.
func New(model llm.Model, asm *assembler.Assembler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:     model,
		assembler: asm,
		reporter:  stats.Nop{},
		cfg:       DefaultConfig,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes one user turn, returning a channel of events in strict
// order. The channel is closed after the terminal event. Cancelling ctx
// stops generation promptly, yields a terminal error event, and skips the
// post-turn hooks.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan AgentEvent {
	events := make(chan AgentEvent, 32)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- AgentEvent) {
	emit := func(ev AgentEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(msg string) {
		// The terminal event must land even when the buffer is full. A slow
		// consumer gets a grace window; only then is it presumed gone.
		select {
		case events <- Errorf(msg):
		case <-time.After(5 * time.Second):
		}
	}

	if strings.TrimSpace(req.UserMessage) == "" {
		fail("empty message")
		return
	}

	conversationID, history, err := o.prepare(ctx, req)
	if err != nil {
		fail(fmt.Sprintf("An error occurred: %v", err))
		return
	}

	// Document inventory feeds intent detection and the list tool.
	var docs []string
	if o.index != nil {
		if !emit(Thinking("Checking your available documents...")) {
			fail("generation canceled")
			return
		}
		docs, err = o.index.Filenames(ctx, req.UserID)
		if err != nil {
			log.Printf("[ENGINE] Failed to list documents for user %s: %v", req.UserID, err)
			docs = nil
		}
	}

	if !emit(Thinking("Analyzing your request...")) {
		fail("generation canceled")
		return
	}
	detected := o.detectIntent(ctx, req.UserMessage, history, docs)
	if !emit(Intent(string(detected.Category), detected.Confidence)) {
		fail("generation canceled")
		return
	}
	log.Printf("[ENGINE] Detected intent %s (confidence %.2f)", detected.Category, detected.Confidence)

	if detected.IsVague {
		options := detected.ClarificationOptions
		if len(options) == 0 {
			options = docs
		}
		emit(Clarification(detected.ClarificationMessage, options))
		return
	}

	bundle, err := o.assembler.Assemble(ctx, req.UserMessage, req.UserID, conversationID, history, 0)
	if err != nil && !assembler.RetrievalDegraded(err) {
		fail(fmt.Sprintf("An error occurred: %v", err))
		return
	}

	if !o.emitToolTrace(emit, detected, bundle, docs) {
		fail("generation canceled")
		return
	}

	if !emit(Thinking("Generating response...")) {
		fail("generation canceled")
		return
	}

	response, err := o.model.GenerateStream(ctx, llm.Request{
		System:      buildSystemPrompt(detected.Category, bundle, docs),
		Messages:    append(bundle.RecentTurns, core.UserMessage(req.UserMessage)),
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}, func(text string) {
		emit(Chunk(text))
	})
	if err != nil {
		if ctx.Err() != nil {
			fail("generation canceled")
		} else {
			log.Printf("[ENGINE] Generation failed: %v", err)
			fail(fmt.Sprintf("An error occurred: %v", err))
		}
		return
	}

	if !emit(Done(conversationID)) {
		fail("generation canceled")
		return
	}

	o.reporter.MessageProcessed(req.UserID)
	go o.postTurn(req.UserID, conversationID, len(history), req.UserMessage, response)
}

// prepare resolves the conversation id and prior history. A missing id opens
// a new thread when a log is wired, else a fresh id keeps the turn coherent.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (string, []core.Message, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		if o.threads != nil {
			thread, err := o.threads.CreateThread(ctx, req.UserID, convstore.TitleFromMessage(req.UserMessage))
			if err != nil {
				return "", nil, fmt.Errorf("create thread: %w", err)
			}
			conversationID = thread.ID
		} else {
			conversationID = uuid.NewString()
		}
	}

	history := req.History
	if history == nil && o.threads != nil {
		turns, err := o.threads.RecentTurns(ctx, conversationID, o.cfg.HistoryLimit)
		if err != nil {
			log.Printf("[ENGINE] Failed to load history for %s: %v", conversationID, err)
		} else {
			history = turns
		}
	}
	if len(history) > o.cfg.HistoryLimit {
		history = history[len(history)-o.cfg.HistoryLimit:]
	}
	return conversationID, history, nil
}

func (o *Orchestrator) detectIntent(ctx context.Context, query string, history []core.Message, docs []string) intent.Detected {
	if o.detector == nil {
		return intent.Detected{Category: intent.GeneralChat, Confidence: 1}
	}
	return o.detector.Detect(ctx, query, history, docs)
}

// emitToolTrace reports the retrieval work behind the assembled bundle as
// tool_call/tool_result pairs, one per tool the intent selected.
func (o *Orchestrator) emitToolTrace(emit func(AgentEvent) bool, detected intent.Detected, bundle *assembler.Bundle, docs []string) bool {
	for _, tool := range detected.Tools {
		params := toolParams(tool, detected)
		if !emit(ToolCall(tool, params)) {
			return false
		}

		var summary string
		switch tool {
		case "search_documents", "get_all_user_documents", "get_document_by_name":
			summary = fmt.Sprintf("Retrieved %d document chunks", len(bundle.RetrievalSnippets))
		case "search_memories", "get_recent_memories":
			summary = fmt.Sprintf("Recalled %d memories", len(bundle.MemorySnippets))
		case "list_documents":
			summary = fmt.Sprintf("Found %d documents", len(docs))
		default:
			summary = "No result"
		}
		if !emit(ToolResult(tool, summary)) {
			return false
		}
	}
	return true
}

func toolParams(tool string, detected intent.Detected) map[string]any {
	switch tool {
	case "search_documents":
		return map[string]any{"limit": 10}
	case "get_all_user_documents":
		return map[string]any{"max_chunks": 50}
	case "get_document_by_name":
		return map[string]any{"filename": detected.Entities["filename"], "max_chunks": 30}
	case "search_memories":
		return map[string]any{"limit": 5}
	case "get_recent_memories":
		return map[string]any{"limit": 10}
	}
	return nil
}

// postTurn runs the fire-and-forget hooks after a genuine done: persist the
// turns, index the exchange, record it as a memory, then check compression.
// It runs detached from the request context so caller teardown cannot abort
// half-written state.
func (o *Orchestrator) postTurn(userID, conversationID string, historyLen int, userText, assistantText string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.HookTimeout)
	defer cancel()

	if o.threads != nil {
		if err := o.threads.AppendTurn(ctx, conversationID, core.UserMessage(userText)); err != nil {
			log.Printf("[ENGINE] Failed to persist user turn: %v", err)
		}
		if err := o.threads.AppendTurn(ctx, conversationID, core.AssistantMessage(assistantText)); err != nil {
			log.Printf("[ENGINE] Failed to persist assistant turn: %v", err)
		}
	}

	if o.indexer != nil {
		turnIndex := historyLen / 2
		if err := o.indexer.IndexExchange(ctx, userID, conversationID, turnIndex, userText, assistantText); err != nil {
			log.Printf("[ENGINE] Failed to index exchange: %v", err)
		}
	}

	if o.memories != nil && o.embedder != nil {
		text := fmt.Sprintf("user: %s\nassistant: %s", userText, assistantText)
		vector, err := o.embedder.Embed(ctx, text)
		if err != nil {
			log.Printf("[ENGINE] Failed to embed memory: %v", err)
		} else if err := o.memories.Add(ctx, memstore.Entry{
			UserID:    userID,
			Text:      text,
			Embedding: vector,
		}); err != nil {
			log.Printf("[ENGINE] Failed to record memory: %v", err)
		} else {
			o.reporter.MemoriesRecorded(1)
		}
	}

	if o.compressor != nil {
		if o.compressor.CheckAndCompress(ctx, userID) {
			o.reporter.CompressionRuns(1)
		}
	}
}

// buildSystemPrompt frames the model per intent and inlines the assembled
// context.
func buildSystemPrompt(category intent.Category, bundle *assembler.Bundle, docs []string) string {
	var b strings.Builder
	b.WriteString(`You are an AI assistant with access to the user's uploaded documents and conversation history.

CRITICAL INSTRUCTIONS:
1. Base your answers on the provided context below.
2. If the answer is in the context, cite it confidently.
3. If no relevant information is found, clearly say so.
4. Be concise but thorough.`)

	switch category {
	case intent.DocumentSummary:
		b.WriteString(`

TASK: Summarize the key points from the user's documents.
- Provide a clear, structured summary
- Highlight the most important information`)
	case intent.DocumentSearch:
		b.WriteString(`

TASK: Find and present specific information from the documents.
- Quote relevant passages when possible
- Indicate which document the information comes from`)
	case intent.MemoryRecall:
		b.WriteString(`

TASK: Recall information from previous conversations.
- Reference relevant past discussions
- Provide context from earlier interactions`)
	case intent.DocumentList:
		b.WriteString(`

TASK: Help the user understand their uploaded documents.
- List the available documents`)
		if len(docs) > 0 {
			b.WriteString("\n\nAvailable documents: ")
			b.WriteString(strings.Join(docs, ", "))
		}
	}

	if len(bundle.MemorySnippets) > 0 {
		b.WriteString("\n\n=== RELEVANT MEMORIES ===\n")
		for _, s := range bundle.MemorySnippets {
			b.WriteString(s.Text)
			b.WriteString("\n\n")
		}
		b.WriteString("=== END MEMORIES ===")
	}

	if len(bundle.RetrievalSnippets) > 0 {
		b.WriteString("\n\n=== DOCUMENT CONTENT ===\n")
		for _, s := range bundle.RetrievalSnippets {
			if s.Metadata.Filename != "" {
				fmt.Fprintf(&b, "[From %s]:\n", s.Metadata.Filename)
			}
			b.WriteString(s.Text)
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString("=== END DOCUMENT CONTENT ===")
	} else if len(bundle.MemorySnippets) == 0 {
		b.WriteString("\n\nNote: No relevant context was found for this query.")
	}

	return b.String()
}
