package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/memstore"
	"github.com/recallhq/recall-go-sdk/memstore/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, text := range []string{"oldest", "middle", "newest"} {
		err := store.Add(ctx, memstore.Entry{
			UserID:    "u1",
			Text:      text,
			Embedding: []float32{1, 0, 0},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("add %q: %v", text, err)
		}
	}

	entries, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Text != "newest" || entries[2].Text != "oldest" {
		t.Errorf("list should be newest first, got %q..%q", entries[0].Text, entries[2].Text)
	}
	if entries[0].ID == "" {
		t.Error("add should assign an id")
	}
}

func TestList_SubsecondOrdering(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// A layout that trims trailing zeros makes .5s sort lexically after
	// .5123s within the same second. Ids are chosen so the id tie-break
	// cannot mask a broken timestamp order.
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	older := memstore.Entry{
		ID: "z-older", UserID: "u1", Text: "older",
		Embedding: []float32{1, 0}, CreatedAt: base.Add(500 * time.Millisecond),
	}
	newer := memstore.Entry{
		ID: "a-newer", UserID: "u1", Text: "newer",
		Embedding: []float32{0, 1}, CreatedAt: base.Add(512300 * time.Microsecond),
	}
	for _, e := range []memstore.Entry{older, newer} {
		if err := store.Add(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "newer" || entries[1].Text != "older" {
		t.Errorf("list should be newest first, got %q then %q", entries[0].Text, entries[1].Text)
	}
}

func TestUserIsolation(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		err := store.Add(ctx, memstore.Entry{UserID: user, Text: "fact", Embedding: []float32{1, 0, 0}})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("u1 should see only their entry, got %d", len(entries))
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"aligned":    {1, 0, 0},
		"orthogonal": {0, 1, 0},
		"diagonal":   {0.7, 0.7, 0},
	}
	for text, vec := range vectors {
		if err := store.Add(ctx, memstore.Entry{UserID: "u1", Text: text, Embedding: vec}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := store.Search(ctx, "u1", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected topK=2 results, got %d", len(results))
	}
	if results[0].Entry.Text != "aligned" {
		t.Errorf("best match should be the aligned vector, got %q", results[0].Entry.Text)
	}
	if results[1].Entry.Text != "diagonal" {
		t.Errorf("second match should be the diagonal vector, got %q", results[1].Entry.Text)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results must be ranked descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	err := store.Add(ctx, memstore.Entry{
		UserID:    "u1",
		Text:      "condensed facts",
		Embedding: []float32{1, 0, 0},
		IsSummary: true,
		SourceIDs: []string{"a", "b", "c"},
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !entries[0].IsSummary {
		t.Error("is_summary flag lost")
	}
	if len(entries[0].SourceIDs) != 3 {
		t.Errorf("source ids lost, got %v", entries[0].SourceIDs)
	}
}

func TestDimensionMismatch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, memstore.Entry{UserID: "u1", Text: "first", Embedding: []float32{1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	err := store.Add(ctx, memstore.Entry{UserID: "u1", Text: "second", Embedding: []float32{1, 0}})
	if !errors.Is(err, core.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, memstore.Entry{ID: "keep", UserID: "u1", Text: "keep", Embedding: []float32{1}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(ctx, memstore.Entry{ID: "drop", UserID: "u1", Text: "drop", Embedding: []float32{1}}); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, "u1", "drop"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "u1", "missing"); err != nil {
		t.Errorf("deleting a missing entry should be a no-op, got %v", err)
	}

	entries, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "keep" {
		t.Errorf("unexpected entries after delete: %+v", entries)
	}
}
