package chat

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/auth"
	"github.com/carecircle/guardrail/internal/shared/errors"
	"github.com/carecircle/guardrail/internal/shared/types"
	"github.com/go-chi/chi/v5"
)

// MaxMessageLength bounds a single chat message in characters
const MaxMessageLength = 4000

// MessageRequest is the chat request body. Outside dev mode the identity
// fields come from the bearer token and the body values are ignored.
type MessageRequest struct {
	Message   string `json:"message"`
	Country   string `json:"country,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Handler serves the chat endpoint
type Handler struct {
	pipeline *Pipeline
	devMode  bool
}

// NewHandler creates a new chat handler
func NewHandler(pipeline *Pipeline, devMode bool) *Handler {
	return &Handler{pipeline: pipeline, devMode: devMode}
}

// Routes registers the chat routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/messages", h.SendMessage)

	return r
}

// SendMessage runs one message through the guardrail pipeline
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if strings.TrimSpace(body.Message) == "" {
		writeError(w, errors.Validation("invalid message", map[string]string{"message": "required"}))
		return
	}
	if utf8.RuneCountInString(body.Message) > MaxMessageLength {
		writeError(w, errors.Validation("invalid message", map[string]string{"message": "too long"}))
		return
	}

	req, err := h.identify(r, body)
	if err != nil {
		writeError(w, err)
		return
	}
	req.Message = body.Message
	req.Country = strings.ToUpper(strings.TrimSpace(body.Country))

	writeJSON(w, http.StatusOK, h.pipeline.Process(r.Context(), req))
}

// identify resolves who is speaking, from the token or in dev mode the body
func (h *Handler) identify(r *http.Request, body MessageRequest) (Request, error) {
	if user := auth.GetUser(r.Context()); user != nil {
		if user.Role == "" {
			return Request{}, errors.Forbidden("a care circle role is required to chat")
		}
		sessionID := user.SessionID
		if sessionID == "" {
			sessionID = types.NewID()
		}
		return Request{SessionID: sessionID, UserID: user.ID, Role: user.Role}, nil
	}

	if !h.devMode {
		return Request{}, errors.Unauthorized("authentication required")
	}

	role, err := safety.ParseRole(body.Role)
	if err != nil {
		return Request{}, errors.Validation("invalid role", map[string]string{"role": "must be patient or caregiver"})
	}

	req := Request{
		SessionID: types.ID(body.SessionID),
		UserID:    types.ID(body.UserID),
		Role:      role,
	}
	if req.SessionID == "" {
		req.SessionID = types.NewID()
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := errors.As(err); ok {
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
