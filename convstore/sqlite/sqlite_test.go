package sqlite_test

import (
	"context"
	"testing"

	"github.com/recallhq/recall-go-sdk/convstore/sqlite"
	"github.com/recallhq/recall-go-sdk/core"
)

func openLog(t *testing.T) *sqlite.Log {
	t.Helper()
	l, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestThreadLifecycle(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	thread, err := l.CreateThread(ctx, "u1", "My first chat")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if thread.ID == "" {
		t.Fatal("thread should get an id")
	}

	turns := []core.Message{
		core.UserMessage("what is a monad"),
		core.AssistantMessage("a monoid in the category of endofunctors"),
		core.UserMessage("try again"),
	}
	for _, msg := range turns {
		if err := l.AppendTurn(ctx, thread.ID, msg); err != nil {
			t.Fatalf("append turn: %v", err)
		}
	}

	got, err := l.RecentTurns(ctx, thread.ID, 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got))
	}
	for i := range turns {
		if got[i].Content != turns[i].Content || got[i].Role != turns[i].Role {
			t.Errorf("turn %d out of order: got %s %q", i, got[i].Role, got[i].Content)
		}
	}

	limited, err := l.RecentTurns(ctx, thread.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[1].Content != "try again" {
		t.Errorf("limit should keep the most recent turns chronologically, got %+v", limited)
	}
}

func TestListThreadsOrder(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	first, err := l.CreateThread(ctx, "u1", "first")
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.CreateThread(ctx, "u1", "second")
	if err != nil {
		t.Fatal(err)
	}

	// Touching the first thread bumps it to the top.
	if err := l.AppendTurn(ctx, first.ID, core.UserMessage("ping")); err != nil {
		t.Fatal(err)
	}

	threads, err := l.ListThreads(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(threads))
	}
	if threads[0].ID != first.ID {
		t.Errorf("most recently updated thread should come first, got %s", threads[0].Title)
	}
	_ = second
}

func TestDeleteThreadCascades(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	thread, err := l.CreateThread(ctx, "u1", "doomed")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.AppendTurn(ctx, thread.ID, core.UserMessage("bye")); err != nil {
		t.Fatal(err)
	}

	if err := l.DeleteThread(ctx, thread.ID); err != nil {
		t.Fatalf("delete thread: %v", err)
	}

	turns, err := l.RecentTurns(ctx, thread.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("turns should cascade with their thread, got %d", len(turns))
	}

	threads, err := l.ListThreads(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 0 {
		t.Errorf("thread should be gone, got %d", len(threads))
	}
}
