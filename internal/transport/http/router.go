package http

import (
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/fanout-service/internal/service"
	"github.com/cwrk-planet/fanout-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(wsServer *ws.Server, presence *service.PresenceTracker, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// WS endpoint
	r.Get("/ws", wsServer.HandleWS)

	// снапшот presence по запросу, вне сокета
	r.Get("/workspaces/{id}/presence", func(w http.ResponseWriter, r *http.Request) {
		workspaceID := chi.URLParam(r, "id")
		writeJSON(w, http.StatusOK, presence.Snapshot(workspaceID))
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
