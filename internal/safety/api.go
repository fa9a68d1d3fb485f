package safety

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/carecircle/guardrail/internal/shared/errors"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the classifier and the crisis resource table
type Handler struct {
	classifier *Classifier
	resources  *ResourceTable
}

// NewHandler creates a new safety handler
func NewHandler(classifier *Classifier, resources *ResourceTable) *Handler {
	return &Handler{classifier: classifier, resources: resources}
}

// Routes registers the safety routes relative to the API root
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/safety/classify", h.Classify)
	r.Get("/crisis-resources/{country}", h.GetCrisisResources)

	return r
}

type classifyRequest struct {
	Message string `json:"message"`
}

// Classify previews the classification of a message. The response carries
// only rule identifiers.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	writeJSON(w, http.StatusOK, h.classifier.Classify(req.Message))
}

// GetCrisisResources returns the crisis contacts for a country
func (h *Handler) GetCrisisResources(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(chi.URLParam(r, "country"))

	writeJSON(w, http.StatusOK, map[string]any{
		"requested_country": country,
		"localized":         h.resources.Has(country),
		"resources":         h.resources.ForCountry(country),
	})
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
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
