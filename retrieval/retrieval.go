// Package retrieval defines the similarity-search index over document and
// conversation chunks. The chromem subpackage provides an embedded backend.
package retrieval

import (
	"context"
	"time"
)

// Source distinguishes where a chunk came from.
type Source string

const (
	SourceDocument     Source = "document"
	SourceConversation Source = "conversation"
)

// ChunkRecord is one indexed unit of text. Records are immutable once added;
// the only mutation is deletion by source reference.
type ChunkRecord struct {
	ID        string
	UserID    string
	Text      string
	Embedding []float32
	Source    Source
	Metadata  ChunkMetadata
}

// ChunkMetadata carries provenance for a chunk. Filename and Page apply to
// document chunks; ConversationID and TurnIndex to conversation chunks.
type ChunkMetadata struct {
	Filename       string
	Page           int
	ConversationID string
	TurnIndex      int
	CreatedAt      time.Time
}

// SourceRef returns the reference deletes cascade on: the filename for
// document chunks, the conversation id for conversation chunks.
func (m ChunkMetadata) SourceRef(source Source) string {
	if source == SourceConversation {
		return m.ConversationID
	}
	return m.Filename
}

// Result is one ranked search hit. Higher scores are more relevant.
type Result struct {
	Chunk ChunkRecord
	Score float32
}

// Filter narrows a search. Zero values match everything.
type Filter struct {
	Source Source
}

// Index is the similarity-search capability the assembler consumes.
type Index interface {
	// Search returns up to topK chunks for the user ranked by similarity to
	// the query vector, most relevant first.
	Search(ctx context.Context, userID string, query []float32, topK int, filter *Filter) ([]Result, error)

	// Add indexes chunks. Every chunk's embedding must match the dimension
	// the index was created with.
	Add(ctx context.Context, chunks []ChunkRecord) error

	// DeleteBySource removes all chunks whose source reference (filename or
	// conversation id) matches.
	DeleteBySource(ctx context.Context, userID string, sourceRef string) error

	// Count reports how many chunks the user has indexed.
	Count(ctx context.Context, userID string) (int, error)

	// Filenames lists the distinct document filenames the user has indexed.
	Filenames(ctx context.Context, userID string) ([]string, error)
}
