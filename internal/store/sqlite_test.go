package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/linxy/chat-relay/internal/model/session"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndListEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	events := []session.Event{
		{SessionID: "s1", Type: session.EventSessionStart, Content: "s1", SequenceNum: 1, CreatedAt: now},
		{SessionID: "s1", Type: session.EventUserMessage, Role: "user", Content: "hi", SequenceNum: 2, CreatedAt: now},
		{SessionID: "s1", Type: session.EventToolCall, ToolCallID: "c1", ToolName: "search_knowledge_base", Content: `{"query":"X"}`, SequenceNum: 3, CreatedAt: now},
	}
	for i := range events {
		if err := s.AppendEvent(ctx, &events[i]); err != nil {
			t.Fatalf("AppendEvent err: %v", err)
		}
	}
	// An unrelated session must not leak into the listing.
	other := session.Event{SessionID: "s2", Type: session.EventSessionStart, SequenceNum: 1, CreatedAt: now}
	if err := s.AppendEvent(ctx, &other); err != nil {
		t.Fatalf("AppendEvent err: %v", err)
	}

	got, err := s.ListEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("ListEvents err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.SequenceNum != i+1 {
			t.Fatalf("event %d: got sequence %d", i, ev.SequenceNum)
		}
	}
	if got[2].ToolName != "search_knowledge_base" || got[2].ToolCallID != "c1" {
		t.Fatalf("tool fields lost in round trip: %+v", got[2])
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Millisecond)
	err := s.CreateSession(ctx, &session.Session{
		ID:        "s1",
		UserID:    "user_deadbeef",
		Status:    session.StatusActive,
		StartTime: start,
	})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.UserID != "user_deadbeef" || got.Status != session.StatusActive {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.StartTime.Equal(start) {
		t.Fatalf("start time mismatch: got %v want %v", got.StartTime, start)
	}
	if got.EndTime != nil || got.DurationSeconds != nil {
		t.Fatalf("fresh session must not carry finalization fields: %+v", got)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCompleteSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Now().UTC()
	if err := s.CreateSession(ctx, &session.Session{ID: "s1", UserID: "u", Status: session.StatusActive, StartTime: start}); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	end := start.Add(42 * time.Second)
	if err := s.CompleteSession(ctx, "s1", end, 42, "- talked about X"); err != nil {
		t.Fatalf("CompleteSession err: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.Status != session.StatusCompleted {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 42 {
		t.Fatalf("unexpected duration: %v", got.DurationSeconds)
	}
	if got.Summary != "- talked about X" {
		t.Fatalf("unexpected summary: %q", got.Summary)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Fatalf("unexpected end time: %v", got.EndTime)
	}
}
