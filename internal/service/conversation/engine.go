// Package conversation drives the per-session orchestration loop: it
// interleaves completion calls, tool execution, and outbound streaming while
// recording an ordered event history.
package conversation

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/linxy/chat-relay/internal/model/session"
)

// maxIterations bounds the tool-calling loop so an uncooperative model cannot
// chain completions indefinitely.
const maxIterations = 3

const systemInstruction = `You are a helpful assistant. When users ask about user data or knowledge base searches:
- Use fetch_user_data tool for user information
- Use search_knowledge_base tool for knowledge lookups
Answer based on tool results.`

// EventLog appends immutable session events and reads them back in order.
type EventLog interface {
	AppendEvent(ctx context.Context, ev *session.Event) error
	ListEvents(ctx context.Context, sessionID string) ([]session.Event, error)
}

// SessionStore creates the session row at connect and finalizes it at close.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *session.Session) error
	CompleteSession(ctx context.Context, sessionID string, endTime time.Time, durationSeconds int64, summary string) error
}

// CompletionClient is the model provider seen by the engine.
type CompletionClient interface {
	Complete(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
	Summarize(ctx context.Context, conversation string) string
}

// ToolRunner executes a named tool and returns its JSON-serialized result.
type ToolRunner interface {
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Sender delivers outbound frames to the connected client.
type Sender interface {
	Send(v any) error
}

// Deps carries the externally constructed adapters the engine works against.
type Deps struct {
	Events EventLog
	Store  SessionStore
	AI     CompletionClient
	Tools  ToolRunner
	Sender Sender
}

// Engine owns all mutable state for one session: the in-memory message
// history, the event sequence counter, and the start timestamp. It is used
// from a single goroutine, the one serving the connection.
type Engine struct {
	sessionID string
	userID    string
	startTime time.Time
	history   []*schema.Message
	seq       int

	deps      Deps
	finalized bool
}

// NewEngine creates the per-connection engine. A fresh user id is generated
// for every connection; history always starts empty.
func NewEngine(sessionID string, deps Deps) *Engine {
	return &Engine{
		sessionID: sessionID,
		userID:    newUserID(),
		startTime: time.Now().UTC(),
		history:   make([]*schema.Message, 0, 16),
		deps:      deps,
	}
}

// SessionID returns the opaque session identifier.
func (e *Engine) SessionID() string { return e.sessionID }

// UserID returns the generated user identifier.
func (e *Engine) UserID() string { return e.userID }

// RunTurn processes one user message: it records the message, then loops
// through completion calls and tool executions until the model stops
// requesting tools or the iteration budget runs out. Exactly one done frame
// is emitted per invocation, always last.
func (e *Engine) RunTurn(ctx context.Context, userMessage string) {
	e.recordEvent(ctx, &session.Event{
		Type:    session.EventUserMessage,
		Role:    "user",
		Content: userMessage,
	})
	e.history = append(e.history, schema.UserMessage(userMessage))

	for iteration := 1; iteration <= maxIterations; iteration++ {
		request := e.history
		if iteration == 1 {
			// The system instruction is part of the request only, never of
			// the persisted history.
			request = append([]*schema.Message{schema.SystemMessage(systemInstruction)}, e.history...)
		}

		response, err := e.deps.AI.Complete(ctx, request)
		if err != nil {
			log.Printf("[conversation] completion failed session=%s: %v", e.sessionID, err)
			e.send(ErrorFrame{Type: "error", Content: err.Error()})
			break
		}

		if text := strings.TrimSpace(response.Content); text != "" {
			e.recordEvent(ctx, &session.Event{
				Type:    session.EventAssistantMessage,
				Role:    "assistant",
				Content: text,
			})
			e.send(TextFrame{Type: "text", Content: text, Chunk: true})
			e.history = append(e.history, schema.AssistantMessage(text, nil))
		}

		if len(response.ToolCalls) == 0 {
			break
		}

		e.runToolCalls(ctx, response.ToolCalls)
	}

	e.send(DoneFrame{Type: "done"})
}

// runToolCalls executes the requested tools in the order the model returned
// them, then appends the assistant turn carrying the calls followed by one
// tool-result turn per call. The completion API requires that ordering.
func (e *Engine) runToolCalls(ctx context.Context, calls []schema.ToolCall) {
	results := make([]*schema.Message, 0, len(calls))

	for _, call := range calls {
		name := call.Function.Name
		args := parseToolArgs(e.sessionID, call.Function.Arguments)
		argsJSON, _ := json.Marshal(args)

		e.recordEvent(ctx, &session.Event{
			Type:       session.EventToolCall,
			ToolCallID: call.ID,
			ToolName:   name,
			Content:    string(argsJSON),
		})

		result, err := e.deps.Tools.Invoke(ctx, name, args)
		if err != nil {
			log.Printf("[conversation] tool %s failed session=%s: %v", name, e.sessionID, err)
			payload, _ := json.Marshal(map[string]string{"error": err.Error()})
			result = string(payload)
		}

		e.recordEvent(ctx, &session.Event{
			Type:       session.EventToolResult,
			ToolCallID: call.ID,
			ToolName:   name,
			ToolResult: result,
		})
		e.send(ToolUseFrame{Type: "tool_use", Tool: name, Result: decodeToolResult(result)})

		results = append(results, schema.ToolMessage(result, call.ID))
	}

	// Raw argument strings go back into history verbatim.
	e.history = append(e.history, schema.AssistantMessage("", calls))
	e.history = append(e.history, results...)
}

// recordEvent assigns the next sequence number and appends to the event log.
// Append failures are logged and swallowed; persistence must never abort the
// conversation.
func (e *Engine) recordEvent(ctx context.Context, ev *session.Event) {
	e.seq++
	ev.SessionID = e.sessionID
	ev.SequenceNum = e.seq
	ev.CreatedAt = time.Now().UTC()

	if err := e.deps.Events.AppendEvent(ctx, ev); err != nil {
		log.Printf("[conversation] failed to record %s event session=%s: %v", ev.Type, e.sessionID, err)
	}
}

func (e *Engine) send(frame any) {
	if err := e.deps.Sender.Send(frame); err != nil {
		log.Printf("[conversation] failed to send frame session=%s: %v", e.sessionID, err)
	}
}

// parseToolArgs decodes the raw argument payload. Arguments the model failed
// to produce as valid JSON degrade to an empty set, never to an error.
func parseToolArgs(sessionID, raw string) map[string]any {
	args := make(map[string]any)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Printf("[conversation] failed to parse tool arguments session=%s: %q", sessionID, raw)
		return map[string]any{}
	}
	return args
}

// decodeToolResult turns the serialized result back into structured JSON for
// the outbound frame, falling back to the raw string.
func decodeToolResult(raw string) any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
