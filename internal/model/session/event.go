package session

import "time"

// EventType categorizes the kind of event.
type EventType string

const (
	EventSessionStart     EventType = "session_start"
	EventUserMessage      EventType = "user_message"
	EventAssistantMessage EventType = "assistant_message"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventSessionEnd       EventType = "session_end"
)

// Event is one immutable, ordered fact about a session's history.
// SequenceNum is assigned by the conversation engine and forms a gapless
// sequence starting at 1 within each session.
type Event struct {
	SessionID   string    `json:"sessionId"`
	Type        EventType `json:"eventType"`
	Role        string    `json:"role,omitempty"`
	Content     string    `json:"content,omitempty"`
	ToolCallID  string    `json:"toolCallId,omitempty"`
	ToolName    string    `json:"toolName,omitempty"`
	ToolResult  string    `json:"toolResult,omitempty"`
	SequenceNum int       `json:"sequenceNum"`
	CreatedAt   time.Time `json:"createdAt"`
}
