package ports

import (
	"context"
	"time"
)

// ChatMessage is one role-tagged message of a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// Sampling holds the per-call sampling knobs sent to the completion service.
type Sampling struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Messages  []ChatMessage
	MaxTokens int
	Sampling  Sampling
}

// CompletionClient talks to an external text-completion service.
type CompletionClient interface {
	// Configured reports whether a credential is available.
	Configured() bool
	// Complete returns the raw message content of the first choice.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RetryHinter is implemented by completion errors that carry a server-requested wait.
type RetryHinter interface {
	RetryAfter() time.Duration
}
