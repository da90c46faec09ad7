// Package llm abstracts chat-completion providers behind a single client
// interface so services can be tested against a mock.
package llm

import "context"

// CompletionRequest is a single-turn prompt sent to a provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int

	// JSONOnly asks the provider for a JSON-object response where the
	// provider supports it. Callers still run the response through
	// ExtractJSON since not every provider honors the hint.
	JSONOnly bool
}

// Client defines the interface for LLM completions.
// Use this interface for dependency injection to enable mocking in tests.
type Client interface {
	// Complete generates a completion for the request and returns the raw
	// response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Model returns the configured model name.
	Model() string
}
