// Package ops exposes the operational HTTP surface: health checks,
// Prometheus metrics, and a small stats endpoint. Chat traffic never flows
// through here.
package ops

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/parley/internal/directory"
	"github.com/eldtechnologies/parley/internal/queue"
	"github.com/eldtechnologies/parley/internal/session"
)

// Handler contains shared dependencies for the ops endpoints.
type Handler struct {
	dir      directory.Store
	queue    queue.Store
	sessions *session.Registry
}

// NewHandler creates a new Handler over the server's backends.
func NewHandler(dir directory.Store, q queue.Store, sessions *session.Registry) *Handler {
	return &Handler{dir: dir, queue: q, sessions: sessions}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
