// Package ingest feeds the retrieval index: it splits already-extracted text
// into fixed-size chunks, embeds them in one batch, and writes ChunkRecords.
// Finished conversation exchanges go through the same path tagged as
// conversation chunks so later turns can retrieve them.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recallhq/recall-go-sdk/embed"
	"github.com/recallhq/recall-go-sdk/retrieval"
	"github.com/recallhq/recall-go-sdk/stats"
)

// Chunker splits text into fixed-size pieces with overlap. Splits happen at
// rune boundaries; overlap carries trailing context into the next chunk so
// sentences cut at a boundary stay findable.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker matches the production chunking parameters.
var DefaultChunker = Chunker{Size: 1000, Overlap: 200}

// Chunk splits text. Empty input yields no chunks.
func (c Chunker) Chunk(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunker.Size
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Indexer embeds chunks and writes them to the retrieval index.
type Indexer struct {
	embedder embed.Provider
	index    retrieval.Index
	chunker  Chunker
	reporter stats.Reporter
}

// Option configures the indexer.
type Option func(*Indexer)

// WithChunker overrides the chunking parameters.
func WithChunker(c Chunker) Option {
	return func(i *Indexer) { i.chunker = c }
}

// WithStats sets the telemetry reporter.
func WithStats(r stats.Reporter) Option {
	return func(i *Indexer) { i.reporter = r }
}

// NewIndexer creates an indexer.
func NewIndexer(embedder embed.Provider, index retrieval.Index, opts ...Option) *Indexer {
	i := &Indexer{
		embedder: embedder,
		index:    index,
		chunker:  DefaultChunker,
		reporter: stats.Nop{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IndexDocument chunks and indexes one document's extracted text. Returns
// the number of chunks written. Re-indexing the same filename first removes
// the previous chunks, so the index never holds two versions.
func (i *Indexer) IndexDocument(ctx context.Context, userID, filename, text string) (int, error) {
	if filename == "" {
		return 0, fmt.Errorf("document requires a filename")
	}
	pieces := i.chunker.Chunk(text)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document %s: no content to index", filename)
	}

	if err := i.index.DeleteBySource(ctx, userID, filename); err != nil {
		return 0, fmt.Errorf("replace document %s: %w", filename, err)
	}

	vectors, err := i.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("embed document %s: %w", filename, err)
	}
	i.reporter.EmbeddingsCreated(len(vectors))

	now := time.Now()
	records := make([]retrieval.ChunkRecord, len(pieces))
	for n, piece := range pieces {
		records[n] = retrieval.ChunkRecord{
			ID:        ulid.Make().String(),
			UserID:    userID,
			Text:      piece,
			Embedding: vectors[n],
			Source:    retrieval.SourceDocument,
			Metadata: retrieval.ChunkMetadata{
				Filename:  filename,
				Page:      n + 1,
				CreatedAt: now,
			},
		}
	}
	if err := i.index.Add(ctx, records); err != nil {
		return 0, fmt.Errorf("index document %s: %w", filename, err)
	}

	i.reporter.ChunksIndexed(len(records))
	log.Printf("[INGEST] Indexed %d chunks from %s for user %s", len(records), filename, userID)
	return len(records), nil
}

// IndexExchange indexes one finished user/assistant exchange as a single
// conversation chunk keyed by conversation id and turn index.
func (i *Indexer) IndexExchange(ctx context.Context, userID, conversationID string, turnIndex int, userText, assistantText string) error {
	if conversationID == "" {
		return fmt.Errorf("exchange requires a conversation id")
	}
	text := fmt.Sprintf("user: %s\nassistant: %s", userText, assistantText)

	vector, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed exchange: %w", err)
	}
	i.reporter.EmbeddingsCreated(1)

	record := retrieval.ChunkRecord{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Text:      text,
		Embedding: vector,
		Source:    retrieval.SourceConversation,
		Metadata: retrieval.ChunkMetadata{
			ConversationID: conversationID,
			TurnIndex:      turnIndex,
			CreatedAt:      time.Now(),
		},
	}
	if err := i.index.Add(ctx, []retrieval.ChunkRecord{record}); err != nil {
		return fmt.Errorf("index exchange: %w", err)
	}
	i.reporter.ChunksIndexed(1)
	return nil
}

// RemoveDocument deletes all chunks of a filename for the user.
func (i *Indexer) RemoveDocument(ctx context.Context, userID, filename string) error {
	return i.index.DeleteBySource(ctx, userID, filename)
}
