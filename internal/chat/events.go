package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names one wire event of the chat stream.
type EventType string

const (
	EventSessionInit     EventType = "session_init"
	EventToolCalls       EventType = "tool_calls"
	EventToolResults     EventType = "tool_results"
	EventThoughtStart    EventType = "thought_process_start"
	EventThoughtContent  EventType = "thought_process_content"
	EventThoughtEnd      EventType = "thought_process_end"
	EventAnswerStart     EventType = "answer_start"
	EventContentDelta    EventType = "content_delta"
	EventMessageComplete EventType = "message_complete"
	EventError           EventType = "error"
)

// Event is one stream event. The JSON encoding is flat: the payload fields
// plus "type" and an RFC3339 "timestamp".
type Event struct {
	Type    EventType
	Time    time.Time
	Payload any
}

// Terminal reports whether the event ends the stream. Every run emits
// exactly one terminal event.
func (e Event) Terminal() bool {
	return e.Type == EventMessageComplete || e.Type == EventError
}

// MarshalJSON flattens the payload and injects type and timestamp.
func (e Event) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any)
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", e.Type, err)
		}
	}
	fields["type"] = string(e.Type)
	fields["timestamp"] = e.Time.Format(time.RFC3339)
	return json.Marshal(fields)
}

// SessionInitPayload opens the stream.
type SessionInitPayload struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

// ToolCallInfo is one requested call in a tool_calls event.
type ToolCallInfo struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolCallsPayload announces a round of tool execution.
type ToolCallsPayload struct {
	Tools []ToolCallInfo `json:"tools"`
}

// ToolResultInfo is one folded result in a tool_results event.
type ToolResultInfo struct {
	Tool    string `json:"tool"`
	Content string `json:"content"`
}

// ToolResultsPayload closes a round of tool execution.
type ToolResultsPayload struct {
	Results []ToolResultInfo `json:"results"`
}

// ThoughtContentPayload carries one reasoning fragment.
type ThoughtContentPayload struct {
	Content string `json:"content"`
}

// ContentDeltaPayload carries one answer fragment. Concatenating all deltas
// of a run yields the full content of message_complete.
type ContentDeltaPayload struct {
	Content string `json:"content"`
}

// MessageCompletePayload terminates a successful run.
type MessageCompletePayload struct {
	FullContent string      `json:"full_content"`
	References  []Reference `json:"references"`
}

// ErrorPayload terminates a failed run.
type ErrorPayload struct {
	Error string `json:"error"`
}
