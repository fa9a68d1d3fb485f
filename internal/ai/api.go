package ai

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes model provider status. Completions are only reachable
// through the chat pipeline.
type Handler struct {
	provider  string
	completer Completer
}

// NewHandler creates a new AI handler
func NewHandler(provider string, completer Completer) *Handler {
	return &Handler{provider: provider, completer: completer}
}

// Routes registers the AI routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	return r
}

// HealthCheck reports whether the model provider is reachable
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checker, ok := h.completer.(HealthChecker)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "unknown",
			"provider": h.provider,
		})
		return
	}

	if err := checker.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"provider": h.provider,
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"provider": h.provider,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
