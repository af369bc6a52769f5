package ingest_test

import (
	"context"
	"strings"
	"testing"

	"github.com/recallhq/recall-go-sdk/ingest"
	"github.com/recallhq/recall-go-sdk/retrieval"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	v[0] = 1
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

type recordingIndex struct {
	added   []retrieval.ChunkRecord
	deleted []string
}

func (r *recordingIndex) Search(ctx context.Context, userID string, query []float32, topK int, filter *retrieval.Filter) ([]retrieval.Result, error) {
	return nil, nil
}

func (r *recordingIndex) Add(ctx context.Context, chunks []retrieval.ChunkRecord) error {
	r.added = append(r.added, chunks...)
	return nil
}

func (r *recordingIndex) DeleteBySource(ctx context.Context, userID, sourceRef string) error {
	r.deleted = append(r.deleted, sourceRef)
	var kept []retrieval.ChunkRecord
	for _, c := range r.added {
		if c.Metadata.SourceRef(c.Source) != sourceRef {
			kept = append(kept, c)
		}
	}
	r.added = kept
	return nil
}

func (r *recordingIndex) Count(ctx context.Context, userID string) (int, error) {
	return len(r.added), nil
}

func (r *recordingIndex) Filenames(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func TestChunker_FixedSizeNoOverlap(t *testing.T) {
	c := ingest.Chunker{Size: 10}
	chunks := c.Chunk(strings.Repeat("a", 25))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 10 || len(chunks[1]) != 10 || len(chunks[2]) != 5 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunker_Overlap(t *testing.T) {
	c := ingest.Chunker{Size: 10, Overlap: 4}
	text := "abcdefghijklmnopqrst" // 20 chars
	chunks := c.Chunk(text)

	if chunks[0] != "abcdefghij" {
		t.Errorf("first chunk = %q", chunks[0])
	}
	if chunks[1] != "ghijklmnop" {
		t.Errorf("second chunk should start 4 chars back, got %q", chunks[1])
	}
	// Every chunk after the first repeats the previous tail.
	for i := 1; i < len(chunks); i++ {
		if !strings.HasPrefix(chunks[i], chunks[i-1][len(chunks[i-1])-4:]) {
			t.Errorf("chunk %d does not overlap its predecessor: %q then %q", i, chunks[i-1], chunks[i])
		}
	}
}

func TestChunker_MultibyteSafe(t *testing.T) {
	c := ingest.Chunker{Size: 4}
	chunks := c.Chunk("héllo wörld")
	var rejoined strings.Builder
	for _, ch := range chunks {
		rejoined.WriteString(ch)
	}
	if rejoined.String() != "héllo wörld" {
		t.Errorf("chunks must rejoin to the original text, got %q", rejoined.String())
	}
}

func TestChunker_Empty(t *testing.T) {
	if chunks := (ingest.Chunker{Size: 10}).Chunk(""); chunks != nil {
		t.Errorf("empty text should yield no chunks, got %v", chunks)
	}
}

func TestIndexDocument(t *testing.T) {
	idx := &recordingIndex{}
	indexer := ingest.NewIndexer(&fakeEmbedder{dims: 3}, idx,
		ingest.WithChunker(ingest.Chunker{Size: 10}))

	n, err := indexer.IndexDocument(context.Background(), "u1", "notes.txt", strings.Repeat("a", 25))
	if err != nil {
		t.Fatalf("IndexDocument failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 chunks indexed, got %d", n)
	}
	for i, c := range idx.added {
		if c.Source != retrieval.SourceDocument {
			t.Errorf("chunk %d has source %s", i, c.Source)
		}
		if c.Metadata.Filename != "notes.txt" {
			t.Errorf("chunk %d lost its filename", i)
		}
		if c.Metadata.Page != i+1 {
			t.Errorf("chunk %d has page %d", i, c.Metadata.Page)
		}
		if c.ID == "" || len(c.Embedding) != 3 {
			t.Errorf("chunk %d missing id or embedding", i)
		}
	}
}

func TestIndexDocument_ReplacesPrevious(t *testing.T) {
	idx := &recordingIndex{}
	indexer := ingest.NewIndexer(&fakeEmbedder{dims: 3}, idx,
		ingest.WithChunker(ingest.Chunker{Size: 10}))
	ctx := context.Background()

	if _, err := indexer.IndexDocument(ctx, "u1", "notes.txt", strings.Repeat("a", 25)); err != nil {
		t.Fatal(err)
	}
	if _, err := indexer.IndexDocument(ctx, "u1", "notes.txt", strings.Repeat("b", 5)); err != nil {
		t.Fatal(err)
	}

	if len(idx.deleted) != 2 {
		t.Errorf("each IndexDocument should clear the previous version, got deletes %v", idx.deleted)
	}
	if len(idx.added) != 1 {
		t.Errorf("expected only the new version's chunk, got %d", len(idx.added))
	}
}

func TestIndexExchange(t *testing.T) {
	idx := &recordingIndex{}
	indexer := ingest.NewIndexer(&fakeEmbedder{dims: 3}, idx)

	err := indexer.IndexExchange(context.Background(), "u1", "conv-9", 4, "what is Go", "a programming language")
	if err != nil {
		t.Fatalf("IndexExchange failed: %v", err)
	}
	if len(idx.added) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(idx.added))
	}
	c := idx.added[0]
	if c.Source != retrieval.SourceConversation {
		t.Errorf("expected conversation source, got %s", c.Source)
	}
	if c.Metadata.ConversationID != "conv-9" || c.Metadata.TurnIndex != 4 {
		t.Errorf("provenance lost: %+v", c.Metadata)
	}
	if !strings.Contains(c.Text, "what is Go") || !strings.Contains(c.Text, "a programming language") {
		t.Errorf("exchange text incomplete: %q", c.Text)
	}
}
