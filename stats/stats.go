// Package stats defines the usage telemetry observer. The engine reports
// counts through an injected Reporter rather than global state, so hosts can
// plug their own metrics pipeline or drop telemetry entirely with Nop.
package stats

import "sync/atomic"

// Reporter receives usage counts after significant operations.
type Reporter interface {
	MessageProcessed(userID string)
	EmbeddingsCreated(n int)
	ChunksIndexed(n int)
	MemoriesRecorded(n int)
	CompressionRuns(n int)
}

// Counters is an in-process Reporter backed by atomic counters.
type Counters struct {
	messages     atomic.Int64
	embeddings   atomic.Int64
	chunks       atomic.Int64
	memories     atomic.Int64
	compressions atomic.Int64
}

// NewCounters creates a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) MessageProcessed(string) { c.messages.Add(1) }
func (c *Counters) EmbeddingsCreated(n int) { c.embeddings.Add(int64(n)) }
func (c *Counters) ChunksIndexed(n int)     { c.chunks.Add(int64(n)) }
func (c *Counters) MemoriesRecorded(n int)  { c.memories.Add(int64(n)) }
func (c *Counters) CompressionRuns(n int)   { c.compressions.Add(int64(n)) }

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Messages     int64 `json:"messages"`
	Embeddings   int64 `json:"embeddings"`
	Chunks       int64 `json:"chunks"`
	Memories     int64 `json:"memories"`
	Compressions int64 `json:"compressions"`
}

// Snapshot reads all counters at once. Individual reads are atomic; the
// snapshot as a whole is not.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Messages:     c.messages.Load(),
		Embeddings:   c.embeddings.Load(),
		Chunks:       c.chunks.Load(),
		Memories:     c.memories.Load(),
		Compressions: c.compressions.Load(),
	}
}

// Nop discards all reports.
type Nop struct{}

func (Nop) MessageProcessed(string) {}
func (Nop) EmbeddingsCreated(int)   {}
func (Nop) ChunksIndexed(int)       {}
func (Nop) MemoriesRecorded(int)    {}
func (Nop) CompressionRuns(int)     {}
