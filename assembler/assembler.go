// Package assembler builds the bounded context for one generation request.
// It queries the memory store and the retrieval index concurrently, merges
// the hits with the recent conversation turns under a token budget, and
// degrades gracefully when sources fail.
//
// Scores from the two sources are never compared against each other: the two
// embedding spaces may differ, so the merge is category-weighted rather than
// a global sort. Each category gets a configurable share of the budget, and
// unused allocation is redistributed recent-turns first, then retrieval,
// then memory.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/embed"
	"github.com/recallhq/recall-go-sdk/memstore"
	"github.com/recallhq/recall-go-sdk/retrieval"
)

// Snippet is one budgeted memory hit.
type Snippet struct {
	Text  string
	Score float32
}

// RetrievalSnippet is one budgeted retrieval hit with its provenance.
type RetrievalSnippet struct {
	Text     string
	Score    float32
	Metadata retrieval.ChunkMetadata
}

// Bundle is the assembled, budget-constrained input for one generation
// request. It is built fresh per request and consumed exactly once.
type Bundle struct {
	MemorySnippets    []Snippet
	RetrievalSnippets []RetrievalSnippet
	RecentTurns       []core.Message // chronological, most recent last
	TokenBudget       int
	UsedTokens        int
}

// Config tunes the assembler. Zero values take the defaults below.
type Config struct {
	// TokenBudget is the default context ceiling when the caller passes 0.
	TokenBudget int

	// MemoryShare and RetrievalShare are fractions of the budget allocated
	// to each category; recent turns get the remainder.
	MemoryShare    float64
	RetrievalShare float64

	// MemoryTopK and RetrievalTopK bound how many hits each search requests.
	MemoryTopK    int
	RetrievalTopK int

	// SearchTimeout bounds each source call, embedding included.
	SearchTimeout time.Duration
}

// DefaultConfig mirrors the shares the system was tuned with: roughly half
// the budget for dialogue recency, a third for retrieved documents, the rest
// for memory.
var DefaultConfig = Config{
	TokenBudget:    8000,
	MemoryShare:    0.15,
	RetrievalShare: 0.35,
	MemoryTopK:     5,
	RetrievalTopK:  10,
	SearchTimeout:  10 * time.Second,
}

// Assembler merges memory, retrieval, and dialogue into one Bundle.
type Assembler struct {
	embedder embed.Provider
	memories memstore.Store
	index    retrieval.Index
	counter  core.TokenCounter
	cfg      Config
}

// Option configures the assembler.
type Option func(*Assembler)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(a *Assembler) {
		a.cfg = normalize(cfg)
	}
}

// WithTokenCounter replaces the heuristic token counter.
func WithTokenCounter(c core.TokenCounter) Option {
	return func(a *Assembler) {
		a.counter = c
	}
}

// New creates an assembler over the given capability adapters.
func New(embedder embed.Provider, memories memstore.Store, index retrieval.Index, opts ...Option) *Assembler {
	a := &Assembler{
		embedder: embedder,
		memories: memories,
		index:    index,
		counter:  core.HeuristicCounter{},
		cfg:      DefaultConfig,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the context bundle for one query. When only one search
// source fails the bundle is degraded silently; when both fail it returns
// the recent-turns-only bundle together with core.ErrRetrievalUnavailable so
// the caller can proceed and log.
func (a *Assembler) Assemble(ctx context.Context, query, userID, conversationID string, recentTurns []core.Message, tokenBudget int) (*Bundle, error) {
	if tokenBudget <= 0 {
		tokenBudget = a.cfg.TokenBudget
	}
	query = strings.TrimSpace(query)
	if query == "" {
		// Nothing to search for; dialogue recency is the whole context.
		return a.merge(nil, nil, recentTurns, tokenBudget), nil
	}

	memHits, retHits, searchErr := a.searchBoth(ctx, query, userID)
	if searchErr != nil {
		log.Printf("[ASSEMBLER] Conversation %s proceeding with recent turns only", conversationID)
	}
	bundle := a.merge(memHits, retHits, recentTurns, tokenBudget)
	return bundle, searchErr
}

// searchBoth embeds the query once and runs the two searches in parallel,
// joining before returning. Latency is bounded by the slower source, not
// their sum.
func (a *Assembler) searchBoth(ctx context.Context, query, userID string) ([]memstore.Result, []retrieval.Result, error) {
	embedCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
	vector, err := a.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		log.Printf("[ASSEMBLER] Query embedding failed: %v", err)
		return nil, nil, fmt.Errorf("%w: embed query: %v", core.ErrRetrievalUnavailable, err)
	}

	var (
		wg      sync.WaitGroup
		memHits []memstore.Result
		retHits []retrieval.Result
		memErr  error
		retErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		searchCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
		defer cancel()
		memHits, memErr = a.memories.Search(searchCtx, userID, vector, a.cfg.MemoryTopK)
	}()
	go func() {
		defer wg.Done()
		searchCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
		defer cancel()
		retHits, retErr = a.index.Search(searchCtx, userID, vector, a.cfg.RetrievalTopK, nil)
	}()
	wg.Wait()

	if memErr != nil {
		log.Printf("[ASSEMBLER] Memory search failed, continuing degraded: %v", memErr)
		memHits = nil
	}
	if retErr != nil {
		log.Printf("[ASSEMBLER] Retrieval search failed, continuing degraded: %v", retErr)
		retHits = nil
	}
	if memErr != nil && retErr != nil {
		return nil, nil, fmt.Errorf("%w: memory: %v; retrieval: %v",
			core.ErrRetrievalUnavailable, memErr, retErr)
	}
	return memHits, retHits, nil
}

// merge applies the category-weighted budget. Snippets are all-or-nothing;
// used tokens never exceed the budget.
func (a *Assembler) merge(memHits []memstore.Result, retHits []retrieval.Result, recentTurns []core.Message, budget int) *Bundle {
	memHits, retHits = dedupe(memHits, retHits)

	memAlloc := int(float64(budget) * a.cfg.MemoryShare)
	retAlloc := int(float64(budget) * a.cfg.RetrievalShare)
	turnAlloc := budget - memAlloc - retAlloc

	// Turn costs indexed newest-first, since turns fill that way.
	turnCosts := make([]int, len(recentTurns))
	for i := range turnCosts {
		turn := recentTurns[len(recentTurns)-1-i]
		turnCosts[i] = a.counter.Count(string(turn.Role)+": ") + a.counter.Count(turn.Content)
	}

	retCosts := make([]int, len(retHits))
	for i, hit := range retHits {
		retCosts[i] = a.counter.Count(hit.Chunk.Text)
	}
	memCosts := make([]int, len(memHits))
	for i, hit := range memHits {
		memCosts[i] = a.counter.Count(hit.Entry.Text)
	}

	// First pass: each category fills within its own allocation.
	nTurns, turnUsed := fit(turnCosts, 0, turnAlloc)
	nRet, retUsed := fit(retCosts, 0, retAlloc)
	nMem, memUsed := fit(memCosts, 0, memAlloc)

	// Second pass: unused allocation flows to recent turns, then retrieval,
	// then memory.
	leftover := budget - turnUsed - retUsed - memUsed

	more, used := fit(turnCosts, nTurns, leftover)
	nTurns += more
	turnUsed += used
	leftover -= used

	more, used = fit(retCosts, nRet, leftover)
	nRet += more
	retUsed += used
	leftover -= used

	more, used = fit(memCosts, nMem, leftover)
	nMem += more
	memUsed += used

	bundle := &Bundle{
		TokenBudget: budget,
		UsedTokens:  turnUsed + retUsed + memUsed,
	}

	// Turns were budgeted newest-first; emit them chronologically.
	bundle.RecentTurns = make([]core.Message, nTurns)
	for i := 0; i < nTurns; i++ {
		bundle.RecentTurns[nTurns-1-i] = recentTurns[len(recentTurns)-1-i]
	}

	bundle.RetrievalSnippets = make([]RetrievalSnippet, 0, nRet)
	for _, hit := range retHits[:nRet] {
		bundle.RetrievalSnippets = append(bundle.RetrievalSnippets, RetrievalSnippet{
			Text:     hit.Chunk.Text,
			Score:    hit.Score,
			Metadata: hit.Chunk.Metadata,
		})
	}

	bundle.MemorySnippets = make([]Snippet, 0, nMem)
	for _, hit := range memHits[:nMem] {
		bundle.MemorySnippets = append(bundle.MemorySnippets, Snippet{
			Text:  hit.Entry.Text,
			Score: hit.Score,
		})
	}

	if bundle.UsedTokens > bundle.TokenBudget {
		// Internal defect, not a user-facing condition.
		log.Printf("[ASSEMBLER] %v: used %d of %d", core.ErrBudgetExceeded, bundle.UsedTokens, bundle.TokenBudget)
	}
	return bundle
}

// fit counts how many consecutive items starting at `from` fit in `budget`,
// all-or-nothing per item, and the tokens they consume.
func fit(costs []int, from, budget int) (n, used int) {
	for i := from; i < len(costs); i++ {
		if used+costs[i] > budget {
			break
		}
		used += costs[i]
		n++
	}
	return n, used
}

// dedupe removes snippets whose text appears in both sources, keeping the
// higher-scored instance in its own category.
func dedupe(memHits []memstore.Result, retHits []retrieval.Result) ([]memstore.Result, []retrieval.Result) {
	retScore := make(map[string]float32, len(retHits))
	for _, hit := range retHits {
		if prev, ok := retScore[hit.Chunk.Text]; !ok || hit.Score > prev {
			retScore[hit.Chunk.Text] = hit.Score
		}
	}

	keptMem := memHits[:0:0]
	memTexts := make(map[string]float32, len(memHits))
	for _, hit := range memHits {
		if prev, ok := memTexts[hit.Entry.Text]; ok && prev >= hit.Score {
			continue // duplicate within memory itself
		}
		if rs, ok := retScore[hit.Entry.Text]; ok && rs >= hit.Score {
			continue // retrieval wins the tie
		}
		memTexts[hit.Entry.Text] = hit.Score
		keptMem = append(keptMem, hit)
	}

	keptRet := retHits[:0:0]
	seenRet := make(map[string]bool, len(retHits))
	for _, hit := range retHits {
		if seenRet[hit.Chunk.Text] {
			continue
		}
		if ms, ok := memTexts[hit.Chunk.Text]; ok && ms > hit.Score {
			continue // memory kept the higher-scored copy
		}
		seenRet[hit.Chunk.Text] = true
		keptRet = append(keptRet, hit)
	}
	return keptMem, keptRet
}

func normalize(cfg Config) Config {
	def := DefaultConfig
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.MemoryShare <= 0 {
		cfg.MemoryShare = def.MemoryShare
	}
	if cfg.RetrievalShare <= 0 {
		cfg.RetrievalShare = def.RetrievalShare
	}
	if cfg.MemoryShare+cfg.RetrievalShare >= 1 {
		// Recent turns must keep a nonzero remainder.
		cfg.MemoryShare = def.MemoryShare
		cfg.RetrievalShare = def.RetrievalShare
	}
	if cfg.MemoryTopK <= 0 {
		cfg.MemoryTopK = def.MemoryTopK
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = def.RetrievalTopK
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	return cfg
}

// RetrievalDegraded reports whether err marks a fully degraded assembly.
func RetrievalDegraded(err error) bool {
	return err != nil && errors.Is(err, core.ErrRetrievalUnavailable)
}
