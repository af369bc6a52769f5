// Package eventwire serializes an AgentEvent stream onto a websocket
// connection as JSON frames, one event per frame. The read side of the
// connection stays with the host transport layer.
package eventwire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recallhq/recall-go-sdk/engine"
)

// Sink writes events to one websocket connection. Writes are serialized;
// gorilla connections allow a single concurrent writer.
type Sink struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

// NewSink wraps an established connection.
func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{
		conn:         conn,
		writeTimeout: 10 * time.Second,
	}
}

// Send writes one event as a JSON text frame.
func (s *Sink) Send(ev engine.AgentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Stream forwards events until the channel closes, a terminal event is sent,
// ctx is canceled, or the peer goes away. It returns the first write error,
// if any.
func (s *Sink) Stream(ctx context.Context, events <-chan engine.AgentEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.Send(ev); err != nil {
				return err
			}
			if ev.Terminal() {
				return nil
			}
		}
	}
}

// Close sends a normal-closure frame and closes the connection.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(s.writeTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
