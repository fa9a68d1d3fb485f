package ai

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the model produced no text
var ErrEmptyCompletion = errors.New("model returned no text")

// Completer produces a companion reply for one user message.
// contextInjection is guidance from the safety gate and may be empty.
type Completer interface {
	Complete(ctx context.Context, prompt, contextInjection string) (string, error)
}

// HealthChecker is implemented by completers that can report reachability
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CompletionRequest is the body sent to the companion AI service
type CompletionRequest struct {
	SystemPrompt     string `json:"system_prompt"`
	Prompt           string `json:"prompt"`
	ContextInjection string `json:"context_injection,omitempty"`
}

// CompletionResponse is the companion AI service reply
type CompletionResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// SystemPrompt frames every model call
const SystemPrompt = `You are a warm, patient companion for families living with dementia.
You offer emotional support, practical day-to-day caregiving ideas and encouragement.
You are not a doctor. Never diagnose, never recommend, start, stop or change any medication or dose,
and never contradict or second-guess a clinician. When something sounds medical, suggest talking to
the care team. Keep replies short, kind and concrete.`

// systemInstruction appends the gate's guidance to the base prompt
func systemInstruction(contextInjection string) string {
	if contextInjection == "" {
		return SystemPrompt
	}
	return SystemPrompt + "\n\n" + contextInjection
}
