// Package compress keeps the memory store bounded. When a user's non-summary
// entry count crosses a threshold, a batch of the most recent entries is
// condensed into a single summary entry by the language model. Originals are
// only ever deleted after the summary write succeeds, and only when the
// retention flag opts in.
package compress

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/embed"
	"github.com/recallhq/recall-go-sdk/llm"
	"github.com/recallhq/recall-go-sdk/memstore"
)

// Config tunes the compression engine.
type Config struct {
	// Threshold is the non-summary entry count that triggers compression.
	Threshold int

	// BatchSize is how many of the most recent non-summary entries one pass
	// condenses.
	BatchSize int

	// DeleteAfterSummary removes the condensed originals once the summary is
	// durably written. Off by default: summaries augment rather than replace.
	DeleteAfterSummary bool

	// Timeout bounds the summarization call.
	Timeout time.Duration
}

// DefaultConfig matches the production thresholds.
var DefaultConfig = Config{
	Threshold: 100,
	BatchSize: 50,
	Timeout:   60 * time.Second,
}

// Engine runs threshold-triggered compression passes with per-user mutual
// exclusion.
type Engine struct {
	store    memstore.Store
	model    llm.Model
	embedder embed.Provider
	cfg      Config

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a compression engine. A zero-valued cfg field takes its
// default.
func New(store memstore.Store, model llm.Model, embedder embed.Provider, cfg Config) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig.Threshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	return &Engine{
		store:    store,
		model:    model,
		embedder: embedder,
		cfg:      cfg,
		inFlight: make(map[string]bool),
	}
}

// ShouldCompress reports whether the user's non-summary entry count exceeds
// the threshold.
func (e *Engine) ShouldCompress(ctx context.Context, userID string) (bool, error) {
	entries, err := e.store.List(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list memories: %w", err)
	}
	return countNonSummary(entries) > e.cfg.Threshold, nil
}

// CheckAndCompress is the post-turn trigger: it checks the threshold, runs
// one pass if crossed, and reports whether a pass completed. Concurrent
// triggers for the same user collapse into a no-op. Errors are logged, never
// propagated to the turn that triggered the check.
func (e *Engine) CheckAndCompress(ctx context.Context, userID string) bool {
	ok, err := e.ShouldCompress(ctx, userID)
	if err != nil {
		log.Printf("[COMPRESS] Threshold check failed for user %s: %v", userID, err)
		return false
	}
	if !ok {
		return false
	}
	if err := e.Compress(ctx, userID); err != nil {
		log.Printf("[COMPRESS] Pass failed for user %s: %v", userID, err)
		return false
	}
	return true
}

// Compress condenses the user's most recent non-summary entries into one
// summary entry. If another pass for the same user is in flight, it returns
// nil immediately. No entry is ever deleted unless its summary was written
// first.
func (e *Engine) Compress(ctx context.Context, userID string) error {
	if !e.acquire(userID) {
		return nil
	}
	defer e.release(userID)

	entries, err := e.store.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: list memories: %v", core.ErrCompressionFailed, err)
	}

	// List is newest-first; take the most recent non-summary batch.
	// Summaries are never re-summarized, so chains stay one level deep.
	batch := make([]memstore.Entry, 0, e.cfg.BatchSize)
	for _, entry := range entries {
		if entry.IsSummary {
			continue
		}
		batch = append(batch, entry)
		if len(batch) == e.cfg.BatchSize {
			break
		}
	}
	if len(batch) < 2 {
		return nil // nothing worth condensing
	}

	texts := make([]string, len(batch))
	sourceIDs := make([]string, len(batch))
	for i, entry := range batch {
		texts[i] = entry.Text
		sourceIDs[i] = entry.ID
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	summary, err := e.model.Summarize(callCtx, texts)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: summarize: %v", core.ErrCompressionFailed, err)
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	vector, err := e.embedder.Embed(embedCtx, summary)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: embed summary: %v", core.ErrCompressionFailed, err)
	}

	summaryEntry := memstore.Entry{
		UserID:    userID,
		Text:      summary,
		Embedding: vector,
		CreatedAt: time.Now(),
		IsSummary: true,
		SourceIDs: sourceIDs,
	}
	if err := e.store.Add(ctx, summaryEntry); err != nil {
		return fmt.Errorf("%w: write summary: %v", core.ErrCompressionFailed, err)
	}

	log.Printf("[COMPRESS] Condensed %d memories into one summary for user %s", len(batch), userID)

	// Deletion strictly follows the durable summary write. A failed delete
	// leaves a redundant original, never a lost memory.
	if e.cfg.DeleteAfterSummary {
		for _, id := range sourceIDs {
			if err := e.store.Delete(ctx, userID, id); err != nil {
				log.Printf("[COMPRESS] Failed to delete original %s: %v", id, err)
			}
		}
	}
	return nil
}

func (e *Engine) acquire(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[userID] {
		return false
	}
	e.inFlight[userID] = true
	return true
}

func (e *Engine) release(userID string) {
	e.mu.Lock()
	delete(e.inFlight, userID)
	e.mu.Unlock()
}

func countNonSummary(entries []memstore.Entry) int {
	n := 0
	for _, entry := range entries {
		if !entry.IsSummary {
			n++
		}
	}
	return n
}
