// Package chromem implements retrieval.Index on chromem-go, a pure Go
// embedded vector database. Each user gets an isolated collection.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/retrieval"
)

// Index stores chunks in per-user chromem collections. The embedding
// dimension is pinned on the first Add; later adds with a different
// dimension are rejected.
type Index struct {
	db          *chromem.DB
	dimensions  int
	collections map[string]*chromem.Collection
	filenames   map[string]map[string]int // userID -> filename -> chunk count
	mu          sync.RWMutex
}

// New creates an in-memory index. dimensions pins the accepted embedding
// size; 0 defers pinning to the first Add.
func New(dimensions int) *Index {
	return &Index{
		db:          chromem.NewDB(),
		dimensions:  dimensions,
		collections: make(map[string]*chromem.Collection),
		filenames:   make(map[string]map[string]int),
	}
}

func (ix *Index) collection(userID string) (*chromem.Collection, error) {
	ix.mu.RLock()
	col, ok := ix.collections[userID]
	ix.mu.RUnlock()
	if ok {
		return col, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if col, ok := ix.collections[userID]; ok {
		return col, nil
	}

	name := "chunks_" + userID
	if userID == "" {
		name = "chunks_global"
	}
	// Embeddings are supplied by the caller, so no embedding func.
	col, err := ix.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	ix.collections[userID] = col
	return col, nil
}

func (ix *Index) checkDimension(vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dimensions == 0 {
		ix.dimensions = len(vec)
		return nil
	}
	if len(vec) != ix.dimensions {
		return fmt.Errorf("%w: got %d, index uses %d", core.ErrDimensionMismatch, len(vec), ix.dimensions)
	}
	return nil
}

// Add indexes chunks for their owning users.
func (ix *Index) Add(ctx context.Context, chunks []retrieval.ChunkRecord) error {
	for _, chunk := range chunks {
		if chunk.Text == "" {
			return fmt.Errorf("chunk %s: empty text", chunk.ID)
		}
		if err := ix.checkDimension(chunk.Embedding); err != nil {
			return fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}

		col, err := ix.collection(chunk.UserID)
		if err != nil {
			return err
		}

		doc := chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Embedding: chunk.Embedding,
			Metadata:  encodeMetadata(chunk),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}

		if chunk.Source == retrieval.SourceDocument && chunk.Metadata.Filename != "" {
			ix.mu.Lock()
			byUser := ix.filenames[chunk.UserID]
			if byUser == nil {
				byUser = make(map[string]int)
				ix.filenames[chunk.UserID] = byUser
			}
			byUser[chunk.Metadata.Filename]++
			ix.mu.Unlock()
		}
	}
	return nil
}

// Search returns the user's most similar chunks, best first.
func (ix *Index) Search(ctx context.Context, userID string, query []float32, topK int, filter *retrieval.Filter) ([]retrieval.Result, error) {
	if err := ix.checkDimension(query); err != nil {
		return nil, err
	}
	col, err := ix.collection(userID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	if n := col.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	var where map[string]string
	if filter != nil && filter.Source != "" {
		where = map[string]string{"source": string(filter.Source)}
	}

	raw, err := col.QueryEmbedding(ctx, query, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]retrieval.Result, 0, len(raw))
	for _, r := range raw {
		chunk, err := decodeResult(userID, r)
		if err != nil {
			log.Printf("[INDEX] Skipping malformed chunk %s: %v", r.ID, err)
			continue
		}
		results = append(results, retrieval.Result{Chunk: chunk, Score: r.Similarity})
	}
	return results, nil
}

// DeleteBySource drops every chunk whose filename or conversation id matches.
func (ix *Index) DeleteBySource(ctx context.Context, userID string, sourceRef string) error {
	if sourceRef == "" {
		return fmt.Errorf("empty source ref")
	}
	col, err := ix.collection(userID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, map[string]string{"source_ref": sourceRef}, nil); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}

	ix.mu.Lock()
	if byUser := ix.filenames[userID]; byUser != nil {
		delete(byUser, sourceRef)
	}
	ix.mu.Unlock()
	return nil
}

// Count reports the user's indexed chunk count.
func (ix *Index) Count(ctx context.Context, userID string) (int, error) {
	col, err := ix.collection(userID)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Filenames lists the user's distinct document filenames, sorted.
func (ix *Index) Filenames(ctx context.Context, userID string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	byUser := ix.filenames[userID]
	names := make([]string, 0, len(byUser))
	for name := range byUser {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func encodeMetadata(chunk retrieval.ChunkRecord) map[string]string {
	md := map[string]string{
		"source":     string(chunk.Source),
		"source_ref": chunk.Metadata.SourceRef(chunk.Source),
		"created_at": chunk.Metadata.CreatedAt.UTC().Format(time.RFC3339),
	}
	if chunk.Metadata.Filename != "" {
		md["filename"] = chunk.Metadata.Filename
		md["page"] = strconv.Itoa(chunk.Metadata.Page)
	}
	if chunk.Metadata.ConversationID != "" {
		md["conversation_id"] = chunk.Metadata.ConversationID
		md["turn_index"] = strconv.Itoa(chunk.Metadata.TurnIndex)
	}
	return md
}

func decodeResult(userID string, r chromem.Result) (retrieval.ChunkRecord, error) {
	source := retrieval.Source(r.Metadata["source"])
	if source != retrieval.SourceDocument && source != retrieval.SourceConversation {
		return retrieval.ChunkRecord{}, fmt.Errorf("unknown source %q", r.Metadata["source"])
	}

	createdAt, _ := time.Parse(time.RFC3339, r.Metadata["created_at"])
	page, _ := strconv.Atoi(r.Metadata["page"])
	turnIndex, _ := strconv.Atoi(r.Metadata["turn_index"])

	return retrieval.ChunkRecord{
		ID:        r.ID,
		UserID:    userID,
		Text:      r.Content,
		Embedding: r.Embedding,
		Source:    source,
		Metadata: retrieval.ChunkMetadata{
			Filename:       r.Metadata["filename"],
			Page:           page,
			ConversationID: r.Metadata["conversation_id"],
			TurnIndex:      turnIndex,
			CreatedAt:      createdAt,
		},
	}, nil
}
