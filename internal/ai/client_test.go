package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
)

func TestClientComplete(t *testing.T) {
	var got CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/complete" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(CompletionResponse{Text: "That sounds like a hard afternoon.", Model: "test"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, zap.NewNop())
	text, err := c.Complete(context.Background(), "Mum refused her bath", "Offer calm ideas.")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if text != "That sounds like a hard afternoon." {
		t.Errorf("Unexpected text %q", text)
	}
	if got.Prompt != "Mum refused her bath" || got.ContextInjection != "Offer calm ideas." {
		t.Errorf("Unexpected request body %+v", got)
	}
	if got.SystemPrompt != SystemPrompt {
		t.Error("Expected system prompt to be sent")
	}
}

func TestClientCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(CompletionResponse{Text: "   "})
			},
			wantErr: ErrEmptyCompletion,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, 50*time.Millisecond, zap.NewNop())
			_, err := c.Complete(context.Background(), "hello", "")
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClientHealth(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy, got %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := c.Health(context.Background()); err == nil {
		t.Error("Expected unhealthy")
	}
}

func TestSystemInstruction(t *testing.T) {
	if systemInstruction("") != SystemPrompt {
		t.Error("Expected bare system prompt without injection")
	}
	got := systemInstruction("Suggest the care team.")
	if !strings.HasPrefix(got, SystemPrompt) || !strings.HasSuffix(got, "Suggest the care team.") {
		t.Errorf("Unexpected instruction %q", got)
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{"nil", nil, "", true},
		{"no candidates", &genai.GenerateContentResponse{}, "", true},
		{
			name: "joined parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("there")}},
			}}},
			want: "Hello there",
		},
		{
			name: "blank",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text(" ")}},
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

type staticCompleter struct{}

func (staticCompleter) Complete(context.Context, string, string) (string, error) { return "ok", nil }

func TestHealthHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		completer Completer
		want      int
		status    string
	}{
		{"no health check", staticCompleter{}, http.StatusOK, "unknown"},
		{"unhealthy service", NewClient(srv.URL, time.Second, zap.NewNop()), http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler("http", tt.completer).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d", tt.want, rec.Code)
			}
			var body map[string]any
			json.NewDecoder(rec.Body).Decode(&body)
			if body["status"] != tt.status {
				t.Errorf("Expected status %s, got %v", tt.status, body["status"])
			}
		})
	}
}
