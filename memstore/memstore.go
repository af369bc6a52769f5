// Package memstore defines the persistent semantic memory store: user-scoped
// facts and the summaries that compress them. The sqlite subpackage provides
// the embedded backend.
package memstore

import (
	"context"
	"time"
)

// Entry is one durable memory. Entries are never mutated in place; the only
// lifecycle transitions are creation and deletion.
type Entry struct {
	ID        string
	UserID    string
	Text      string
	Embedding []float32
	CreatedAt time.Time

	// IsSummary marks entries produced by compression. SourceIDs lists the
	// non-summary entries a summary condensed; summaries never reference
	// other summaries.
	IsSummary bool
	SourceIDs []string
}

// Result is one ranked memory hit. Higher scores are more relevant.
type Result struct {
	Entry Entry
	Score float32
}

// Store is the memory capability consumed by the assembler and the
// compression engine. Implementations provide per-entry atomicity; the
// compression engine sequences its own multi-entry operations.
type Store interface {
	// Add persists a new entry. The entry's embedding must match the
	// dimension of previously stored entries.
	Add(ctx context.Context, entry Entry) error

	// Search returns up to topK of the user's entries ranked by similarity,
	// most relevant first.
	Search(ctx context.Context, userID string, query []float32, topK int) ([]Result, error)

	// List returns all of the user's entries, newest first.
	List(ctx context.Context, userID string) ([]Entry, error)

	// Delete removes one entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, userID string, entryID string) error
}
