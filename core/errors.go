package core

import "errors"

// Error taxonomy. Adapter-level failures are converted to these at component
// boundaries; callers branch with errors.Is.
var (
	// ErrRetrievalUnavailable means every retrieval source failed for one
	// assembly. The assembler still returns a recent-turns-only bundle
	// alongside this error, so the turn can proceed degraded.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrModelUnavailable means the generation call itself failed. The turn
	// is aborted and surfaced to the caller as an error event.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrCompressionFailed means a summarization pass failed. Nothing is
	// deleted; the next threshold check retries.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrBudgetExceeded indicates an assembled bundle overran its token
	// budget. This is an internal defect, never expected in normal operation.
	ErrBudgetExceeded = errors.New("token budget exceeded")

	// ErrDimensionMismatch means an embedding's length does not match the
	// dimension the index was created with. Mixing providers with different
	// dimensions requires a reindex.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
