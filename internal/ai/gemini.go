package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini completer
type GeminiConfig struct {
	APIKey    string
	ModelName string
}

// GeminiCompleter generates replies with Google's Gemini API
type GeminiCompleter struct {
	client    *genai.Client
	modelName string
	log       *zap.Logger
}

// NewGeminiCompleter creates the underlying genai client
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	log = log.Named("gemini")
	log.Info("gemini completer initialized", zap.String("model", cfg.ModelName))

	return &GeminiCompleter{client: client, modelName: cfg.ModelName, log: log}, nil
}

// model builds a per-call model so concurrent calls never share a system instruction
func (g *GeminiCompleter) model(contextInjection string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction(contextInjection))},
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.4),
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: genai.Ptr[int32](400),
	}
	return m
}

// Complete generates one reply
func (g *GeminiCompleter) Complete(ctx context.Context, prompt, contextInjection string) (string, error) {
	resp, err := g.model(contextInjection).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	return responseText(resp)
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

// Close closes the Gemini client
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}
