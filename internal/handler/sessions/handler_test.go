package sessions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linxy/chat-relay/internal/model/session"
	"github.com/linxy/chat-relay/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	r := chi.NewRouter()
	New(st).RegisterRoutes(r)
	return r, st
}

func TestGetSession(t *testing.T) {
	r, st := setupRouter(t)
	ctx := context.Background()

	err := st.CreateSession(ctx, &session.Session{
		ID:        "s1",
		UserID:    "user_cafebabe",
		Status:    session.StatusActive,
		StartTime: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var got session.Session
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if got.ID != "s1" || got.UserID != "user_cafebabe" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListEvents(t *testing.T) {
	r, st := setupRouter(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, &session.Session{ID: "s1", UserID: "u", Status: session.StatusActive, StartTime: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	for i, evType := range []session.EventType{session.EventSessionStart, session.EventUserMessage} {
		ev := session.Event{SessionID: "s1", Type: evType, SequenceNum: i + 1, CreatedAt: time.Now().UTC()}
		if err := st.AppendEvent(ctx, &ev); err != nil {
			t.Fatalf("AppendEvent err: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/events", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		SessionID string          `json:"sessionId"`
		Events    []session.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(payload.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(payload.Events))
	}
	if payload.Events[1].Type != session.EventUserMessage {
		t.Fatalf("unexpected event order: %+v", payload.Events)
	}
}

func TestListEventsUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/events", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
