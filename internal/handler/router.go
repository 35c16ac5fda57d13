package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linxy/chat-relay/internal/handler/sessions"
	"github.com/linxy/chat-relay/internal/handler/ws"
	"github.com/linxy/chat-relay/internal/service/ai"
	"github.com/linxy/chat-relay/internal/service/tools"
	"github.com/linxy/chat-relay/internal/store"
	"github.com/linxy/chat-relay/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(st *store.SQLiteStore, aiSvc *ai.Service, registry *tools.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	wsHandler := ws.New(st, st, aiSvc, registry)
	sessionsHandler := sessions.New(st)

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth(st))

	wsHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		sessionsHandler.RegisterRoutes(api)
	})

	return r
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"service":   "Conversational Relay Backend",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": map[string]string{
			"websocket": "/ws/session/{sessionID}",
			"health":    "/health",
			"sessions":  "/api/sessions/{sessionID}",
		},
	})
}

func handleHealth(st *store.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := "connected"
		status := "ok"
		if err := st.Ping(r.Context()); err != nil {
			database = "unavailable"
			status = "degraded"
		}

		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  database,
			"llm":       "ready",
		})
	}
}
