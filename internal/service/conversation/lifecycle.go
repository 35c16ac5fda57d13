package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linxy/chat-relay/internal/model/session"
)

// Start opens the session: it inserts the session row and records the
// session_start event. A failed row insert is logged but does not prevent
// the conversation from proceeding.
func (e *Engine) Start(ctx context.Context) {
	err := e.deps.Store.CreateSession(ctx, &session.Session{
		ID:        e.sessionID,
		UserID:    e.userID,
		Status:    session.StatusActive,
		StartTime: e.startTime,
	})
	if err != nil {
		log.Printf("[session] failed to create session row %s: %v", e.sessionID, err)
	}

	e.recordEvent(ctx, &session.Event{
		Type:    session.EventSessionStart,
		Content: e.sessionID,
	})
}

// Finalize closes the session: it rebuilds the narrative from the event log,
// asks the model for a summary, records the session_end event, and applies
// the one-time session-row update. Disconnects and receive-loop errors both
// land here; only the first call does anything.
func (e *Engine) Finalize(ctx context.Context) {
	if e.finalized {
		return
	}
	e.finalized = true

	endTime := time.Now().UTC()
	duration := int64(endTime.Sub(e.startTime).Seconds())

	events, err := e.deps.Events.ListEvents(ctx, e.sessionID)
	if err != nil {
		log.Printf("[session] failed to read events for %s: %v", e.sessionID, err)
	}

	summary := e.deps.AI.Summarize(ctx, buildNarrative(events))

	e.recordEvent(ctx, &session.Event{
		Type:    session.EventSessionEnd,
		Content: summary,
	})

	if err := e.deps.Store.CompleteSession(ctx, e.sessionID, endTime, duration, summary); err != nil {
		log.Printf("[session] failed to update session row %s: %v", e.sessionID, err)
	}

	log.Printf("[session] session %s completed, duration=%ds", e.sessionID, duration)
}

// buildNarrative renders the conversational events as one labeled line each,
// in original order, for the summarization prompt.
func buildNarrative(events []session.Event) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev.Type {
		case session.EventUserMessage:
			lines = append(lines, "User: "+ev.Content)
		case session.EventAssistantMessage:
			lines = append(lines, "Assistant: "+ev.Content)
		case session.EventToolCall:
			lines = append(lines, fmt.Sprintf("[Tool Call] %s: %s", ev.ToolName, ev.Content))
		}
	}
	return strings.Join(lines, "\n")
}

func newUserID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "user_" + hex[:8]
}
