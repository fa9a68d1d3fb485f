package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/auth"
	"github.com/carecircle/guardrail/internal/shared/errors"
	"github.com/carecircle/guardrail/internal/shared/types"
	"github.com/go-chi/chi/v5"
)

// Handler serves read-only compliance review endpoints
type Handler struct {
	reader  Reader
	devMode bool
}

// NewHandler creates a handler. Outside devMode only auditors may read.
func NewHandler(reader Reader, devMode bool) *Handler {
	return &Handler{reader: reader, devMode: devMode}
}

// Routes registers the audit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListEntries)
	r.Get("/verify", h.VerifyChain)

	return r
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.devMode {
		return true
	}
	user := auth.GetUser(r.Context())
	return user != nil && user.IsAuditor()
}

// ListEntries lists audit entries with filters
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, errors.Forbidden("auditor access required"))
		return
	}

	q := r.URL.Query()
	filter := Filter{}

	if sessionID := q.Get("session_id"); sessionID != "" {
		id := types.ID(sessionID)
		filter.SessionID = &id
	}

	if userID := q.Get("user_id"); userID != "" {
		id := types.ID(userID)
		filter.UserID = &id
	}

	if level := q.Get("safety_level"); level != "" {
		l, err := safety.ParseLevel(level)
		if err != nil {
			writeError(w, errors.BadRequest(err.Error()))
			return
		}
		filter.SafetyLevel = &l
	}

	if startTime := q.Get("start_time"); startTime != "" {
		t, err := time.Parse(time.RFC3339, startTime)
		if err == nil {
			filter.StartTime = &t
		}
	}

	if endTime := q.Get("end_time"); endTime != "" {
		t, err := time.Parse(time.RFC3339, endTime)
		if err == nil {
			filter.EndTime = &t
		}
	}

	if limit := q.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}

	if offset := q.Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	entries, total, err := h.reader.List(r.Context(), filter)
	if err != nil {
		writeError(w, errors.Unavailable("audit store unavailable", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":   entries,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// VerifyChain verifies the hash chain of recent entries
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, errors.Forbidden("auditor access required"))
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	includeDetails := r.URL.Query().Get("details") == "true"

	result, err := h.reader.VerifyChain(r.Context(), limit, includeDetails)
	if err != nil {
		writeError(w, errors.Unavailable("audit store unavailable", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
