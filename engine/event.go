package engine

import "encoding/json"

// EventType tags an AgentEvent variant.
type EventType string

const (
	EventThinking      EventType = "thinking"
	EventIntent        EventType = "intent"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventClarification EventType = "clarification"
	EventChunk         EventType = "chunk"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// AgentEvent is one tagged unit of the generation trace. Exactly one of
// done, error, or clarification terminates a run; serialization carries only
// the fields of the variant.
type AgentEvent struct {
	Type           EventType
	Content        string
	Tool           string
	Params         map[string]any
	Summary        string
	Message        string
	Options        []string
	Intent         string
	Confidence     float64
	ConversationID string
}

// Thinking reports a deliberation step.
func Thinking(content string) AgentEvent {
	return AgentEvent{Type: EventThinking, Content: content}
}

// Intent reports the detected intent label and its confidence in [0,1].
func Intent(label string, confidence float64) AgentEvent {
	return AgentEvent{Type: EventIntent, Intent: label, Confidence: confidence}
}

// ToolCall reports a tool invocation and its parameters.
func ToolCall(tool string, params map[string]any) AgentEvent {
	return AgentEvent{Type: EventToolCall, Tool: tool, Params: params}
}

// ToolResult reports a tool's outcome summary.
func ToolResult(tool, summary string) AgentEvent {
	return AgentEvent{Type: EventToolResult, Tool: tool, Summary: summary}
}

// Clarification asks the user to disambiguate; it terminates the run.
func Clarification(message string, options []string) AgentEvent {
	return AgentEvent{Type: EventClarification, Message: message, Options: options}
}

// Chunk carries one streamed piece of response text.
func Chunk(text string) AgentEvent {
	return AgentEvent{Type: EventChunk, Content: text}
}

// Done terminates a successful run.
func Done(conversationID string) AgentEvent {
	return AgentEvent{Type: EventDone, ConversationID: conversationID}
}

// Errorf terminates a failed run with a human-readable message.
func Errorf(message string) AgentEvent {
	return AgentEvent{Type: EventError, Content: message}
}

// Terminal reports whether the event ends the run.
func (e AgentEvent) Terminal() bool {
	switch e.Type {
	case EventDone, EventError, EventClarification:
		return true
	}
	return false
}

// MarshalJSON emits the type tag plus only the fields of that variant, the
// wire contract transports serialize.
func (e AgentEvent) MarshalJSON() ([]byte, error) {
	frame := map[string]any{"type": e.Type}
	switch e.Type {
	case EventThinking, EventChunk, EventError:
		frame["content"] = e.Content
	case EventIntent:
		frame["intent"] = e.Intent
		frame["confidence"] = e.Confidence
	case EventToolCall:
		frame["tool"] = e.Tool
		if e.Params != nil {
			frame["params"] = e.Params
		}
	case EventToolResult:
		frame["tool"] = e.Tool
		frame["summary"] = e.Summary
	case EventClarification:
		frame["message"] = e.Message
		if e.Options != nil {
			frame["options"] = e.Options
		}
	case EventDone:
		frame["conversation_id"] = e.ConversationID
	}
	return json.Marshal(frame)
}
