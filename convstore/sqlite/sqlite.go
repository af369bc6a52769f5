// Package sqlite implements convstore.Log on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/recallhq/recall-go-sdk/convstore"
	"github.com/recallhq/recall-go-sdk/core"
)

// timeLayout is fixed-width (nanoseconds always padded to nine digits) so
// lexical ORDER BY on the stored strings matches chronological order.
// RFC3339Nano trims trailing zeros and breaks that within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Log persists threads and turns in SQLite.
type Log struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *rand.Rand
}

// Open opens or creates the database at path. ":memory:" gives an ephemeral
// log, used by tests.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	l := &Log{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_threads_user ON threads(user_id, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// CreateThread opens a new thread for the user.
func (l *Log) CreateThread(ctx context.Context, userID, title string) (convstore.Thread, error) {
	if userID == "" {
		return convstore.Thread{}, fmt.Errorf("thread requires a user id")
	}
	if title == "" {
		title = "New Chat"
	}
	now := time.Now()
	thread := convstore.Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO threads (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		thread.ID, thread.UserID, thread.Title,
		now.UTC().Format(timeLayout), now.UTC().Format(timeLayout),
	)
	if err != nil {
		return convstore.Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return thread, nil
}

// AppendTurn records one finalized turn. Turn ids are ULIDs, so insertion
// order and lexical order agree.
func (l *Log) AppendTurn(ctx context.Context, conversationID string, msg core.Message) error {
	if conversationID == "" {
		return fmt.Errorf("turn requires a conversation id")
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	l.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), l.entropy).String()
	l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, conversationID, string(msg.Role), msg.Content,
		ts.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), conversationID)
	if err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns in chronological order.
func (l *Log) RecentTurns(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM turns
		WHERE conversation_id = ?
		ORDER BY id DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Message
	for rows.Next() {
		var (
			role      string
			content   string
			createdAt string
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, err
		}
		msg := core.Message{Role: core.Role(role), Content: content}
		msg.Timestamp, _ = time.Parse(timeLayout, createdAt)
		turns = append(turns, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers want chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListThreads returns the user's threads, most recently updated first.
func (l *Log) ListThreads(ctx context.Context, userID string, limit int) ([]convstore.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at FROM threads
		WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []convstore.Thread
	for rows.Next() {
		var (
			t         convstore.Thread
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// DeleteThread removes a thread; turns go with it via cascade.
func (l *Log) DeleteThread(ctx context.Context, conversationID string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
