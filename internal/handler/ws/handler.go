// Package ws is the websocket transport in front of the conversation engine.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/linxy/chat-relay/internal/service/conversation"
)

const (
	readWait  = 60 * time.Second
	pingEvery = 30 * time.Second
)

// Handler accepts one long-lived connection per session identifier and feeds
// decoded user messages into a per-connection engine.
type Handler struct {
	events   conversation.EventLog
	store    conversation.SessionStore
	ai       conversation.CompletionClient
	tools    conversation.ToolRunner
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(events conversation.EventLog, store conversation.SessionStore, ai conversation.CompletionClient, tools conversation.ToolRunner) *Handler {
	return &Handler{
		events: events,
		store:  store,
		ai:     ai,
		tools:  tools,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the session endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/session/{sessionID}", h.handleSession)
}

type inboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	// The identifier is taken as-is; any string names a session.
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	sender := newConnSender(conn)
	engine := conversation.NewEngine(sessionID, conversation.Deps{
		Events: h.events,
		Store:  h.store,
		AI:     h.ai,
		Tools:  h.tools,
		Sender: sender,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	engine.Start(ctx)
	// The request context dies with the connection; finalization still needs
	// to reach the datastore and the summary model.
	defer engine.Finalize(context.Background())

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	go h.pingLoop(ctx, sender)

	h.receiveLoop(ctx, conn, engine)
}

// receiveLoop decodes inbound frames until the connection drops or an error
// escapes. Unrecognized and blank frames are ignored without a reply.
func (h *Handler) receiveLoop(ctx context.Context, conn *websocket.Conn, engine *conversation.Engine) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[websocket] panic in receive loop session=%s: %v", engine.SessionID(), rec)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error session=%s: %v", engine.SessionID(), err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != "message" {
			continue
		}

		content := strings.TrimSpace(frame.Content)
		if content == "" {
			continue
		}

		engine.RunTurn(ctx, content)
	}
}

func (h *Handler) pingLoop(ctx context.Context, sender *connSender) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sender.ping(); err != nil {
				return
			}
		}
	}
}

// connSender serializes writes; frames and pings share one connection.
type connSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnSender(conn *websocket.Conn) *connSender {
	return &connSender{conn: conn}
}

func (s *connSender) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *connSender) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}
