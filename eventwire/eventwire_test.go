package eventwire_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recallhq/recall-go-sdk/engine"
	"github.com/recallhq/recall-go-sdk/eventwire"
)

var upgrader = websocket.Upgrader{}

// serve runs fn on the server side of a fresh websocket pair and returns the
// client side.
func serve(t *testing.T, fn func(sink *eventwire.Sink)) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		sink := eventwire.NewSink(conn)
		defer sink.Close()
		fn(sink)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestSend_FrameShape(t *testing.T) {
	client := serve(t, func(sink *eventwire.Sink) {
		if err := sink.Send(engine.Chunk("hello")); err != nil {
			t.Errorf("send: %v", err)
		}
		if err := sink.Send(engine.Done("conv-1")); err != nil {
			t.Errorf("send: %v", err)
		}
	})

	chunk := readFrame(t, client)
	if chunk["type"] != "chunk" || chunk["content"] != "hello" {
		t.Errorf("unexpected chunk frame: %v", chunk)
	}
	if _, ok := chunk["conversation_id"]; ok {
		t.Error("chunk frame must not carry done fields")
	}

	done := readFrame(t, client)
	if done["type"] != "done" || done["conversation_id"] != "conv-1" {
		t.Errorf("unexpected done frame: %v", done)
	}
}

func TestStream_StopsAtTerminal(t *testing.T) {
	events := make(chan engine.AgentEvent, 8)
	events <- engine.Thinking("working")
	events <- engine.Chunk("partial")
	events <- engine.Done("conv-2")
	events <- engine.Chunk("must not be sent")
	close(events)

	streamed := make(chan error, 1)
	client := serve(t, func(sink *eventwire.Sink) {
		streamed <- sink.Stream(context.Background(), events)
	})

	types := []string{}
	for i := 0; i < 3; i++ {
		frame := readFrame(t, client)
		types = append(types, frame["type"].(string))
	}
	want := []string{"thinking", "chunk", "done"}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("frame order %v, want %v", types, want)
		}
	}

	if err := <-streamed; err != nil {
		t.Errorf("stream returned %v", err)
	}

	// Nothing after the terminal event: next read hits the close frame.
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var extra map[string]any
	if err := client.ReadJSON(&extra); err == nil {
		t.Errorf("unexpected frame after terminal event: %v", extra)
	}
}

func TestStream_ChannelClose(t *testing.T) {
	events := make(chan engine.AgentEvent, 2)
	events <- engine.Thinking("only event")
	close(events)

	streamed := make(chan error, 1)
	client := serve(t, func(sink *eventwire.Sink) {
		streamed <- sink.Stream(context.Background(), events)
	})

	frame := readFrame(t, client)
	if frame["type"] != "thinking" {
		t.Errorf("unexpected frame: %v", frame)
	}
	if err := <-streamed; err != nil {
		t.Errorf("stream returned %v", err)
	}
}
