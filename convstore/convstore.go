// Package convstore defines the conversation persistence collaborator: the
// engine hands it finalized turns and reads back recent history, nothing
// more. The sqlite subpackage is the reference implementation.
package convstore

import (
	"context"
	"strings"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
)

// Thread is one conversation.
type Thread struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Log persists conversation threads and their turns.
type Log interface {
	// CreateThread opens a new thread for the user.
	CreateThread(ctx context.Context, userID, title string) (Thread, error)

	// AppendTurn records one finalized turn and bumps the thread's
	// updated_at.
	AppendTurn(ctx context.Context, conversationID string, msg core.Message) error

	// RecentTurns returns up to limit turns in chronological order, most
	// recent last.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]core.Message, error)

	// ListThreads returns the user's threads, most recently updated first.
	ListThreads(ctx context.Context, userID string, limit int) ([]Thread, error)

	// DeleteThread removes a thread and all its turns.
	DeleteThread(ctx context.Context, conversationID string) error
}

// TitleFromMessage derives a short thread title from the first user message:
// the first 50 characters, cut back to a word boundary when one falls past
// position 20.
func TitleFromMessage(message string) string {
	const limit = 50
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	title := string(runes[:limit])
	if i := strings.LastIndex(title, " "); i > 20 {
		title = title[:i]
	}
	return title + "..."
}
