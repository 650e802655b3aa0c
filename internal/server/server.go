// Package server exposes the workspace API surface: task creation and
// queries, chat messages, paper uploads, the WebSocket endpoint, and a
// health check. It is a thin adapter over the store, the scheduler and the
// broadcast hub.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/atelier-dev/atelier/internal/hub"
	"github.com/atelier-dev/atelier/pkg/workspace"
)

// Enqueuer is the scheduler surface the API needs.
type Enqueuer interface {
	Enqueue(task *workspace.Task) error
}

// Server is the HTTP and WebSocket front end.
type Server struct {
	store     *workspace.Client
	scheduler Enqueuer
	hub       *hub.Hub
	server    *http.Server
}

// New wires the API surface. Call Start to begin serving.
func New(store *workspace.Client, scheduler Enqueuer, h *hub.Hub, listen string) *Server {
	s := &Server{
		store:     store,
		scheduler: scheduler,
		hub:       h,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/workspace/{workspaceID}", s.handleListWorkspaceTasks)
	mux.HandleFunc("GET /api/tasks/queue/{workspaceID}", s.handleListPendingTasks)
	mux.HandleFunc("GET /api/tasks/{taskID}", s.handleGetTask)
	mux.HandleFunc("GET /api/workspace/messages/{workspaceID}", s.handleListMessages)
	mux.HandleFunc("POST /api/workspace/messages", s.handleCreateMessage)
	mux.HandleFunc("POST /api/papers", s.handleCreatePaper)
	mux.HandleFunc("GET /api/papers/workspace/{workspaceID}", s.handleListPapers)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:        listen,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /ws connections are long-lived
	}

	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[Server] Listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleHealth returns 200 when Redis is reachable, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "unhealthy",
			Redis:  "disconnected",
			Error:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

// writeError writes the standard error body: {"error": "..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
