// Package sqlite implements memstore.Store on an embedded SQLite database.
// Embeddings are stored per row and ranked client-side by cosine similarity,
// which keeps the store dependency-free of a vector engine while staying
// well within per-user memory counts (compression bounds them).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/embed"
	"github.com/recallhq/recall-go-sdk/memstore"
)

// timeLayout is fixed-width (nanoseconds always padded to nine digits) so
// lexical ORDER BY on the stored strings matches chronological order.
// RFC3339Nano trims trailing zeros and breaks that within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists memories in SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *rand.Rand
}

// Open opens or creates the database at path. ":memory:" gives an ephemeral
// store, used by tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		embedding  TEXT NOT NULL,
		created_at TEXT NOT NULL,
		is_summary INTEGER NOT NULL DEFAULT 0,
		source_ids TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_user_summary ON memories(user_id, is_summary);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewID returns a fresh lexically sortable id.
func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Add persists a new entry, assigning an id if missing.
func (s *Store) Add(ctx context.Context, entry memstore.Entry) error {
	if entry.UserID == "" {
		return fmt.Errorf("entry requires a user id")
	}
	if entry.Text == "" {
		return fmt.Errorf("entry requires text")
	}
	if entry.ID == "" {
		entry.ID = s.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if dims, err := s.dimensions(ctx, entry.UserID); err != nil {
		return err
	} else if dims > 0 && len(entry.Embedding) != dims {
		return fmt.Errorf("%w: got %d, store uses %d", core.ErrDimensionMismatch, len(entry.Embedding), dims)
	}

	embJSON, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	var srcJSON []byte
	if len(entry.SourceIDs) > 0 {
		srcJSON, err = json.Marshal(entry.SourceIDs)
		if err != nil {
			return fmt.Errorf("marshal source ids: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, text, embedding, created_at, is_summary, source_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Text, string(embJSON),
		entry.CreatedAt.UTC().Format(timeLayout),
		boolToInt(entry.IsSummary), nullable(srcJSON),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// Search ranks the user's memories by cosine similarity to the query vector.
func (s *Store) Search(ctx context.Context, userID string, query []float32, topK int) ([]memstore.Result, error) {
	if topK <= 0 {
		topK = 5
	}
	entries, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]memstore.Result, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != len(query) {
			continue
		}
		results = append(results, memstore.Result{
			Entry: e,
			Score: embed.Cosine(query, e.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// List returns all of the user's entries, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]memstore.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, embedding, created_at, is_summary, source_ids
		FROM memories WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var entries []memstore.Entry
	for rows.Next() {
		var (
			e         memstore.Entry
			embJSON   string
			createdAt string
			isSummary int
			srcJSON   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Text, &embJSON, &createdAt, &isSummary, &srcJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(embJSON), &e.Embedding); err != nil {
			return nil, fmt.Errorf("memory %s: decode embedding: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		e.IsSummary = isSummary != 0
		if srcJSON.Valid && srcJSON.String != "" {
			if err := json.Unmarshal([]byte(srcJSON.String), &e.SourceIDs); err != nil {
				return nil, fmt.Errorf("memory %s: decode source ids: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes one entry; missing entries are a no-op.
func (s *Store) Delete(ctx context.Context, userID string, entryID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE user_id = ? AND id = ?`, userID, entryID)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// dimensions returns the embedding length of the user's most recent entry,
// or 0 when the user has none.
func (s *Store) dimensions(ctx context.Context, userID string) (int, error) {
	var embJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT embedding FROM memories WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, userID).Scan(&embJSON)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var vec []float32
	if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
		return 0, err
	}
	return len(vec), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
