package domain

import "context"

// LLMProvider is the interface for any LLM vendor backend. Implementations
// own the translation between ChatRequest/ChatResponse and their vendor's
// wire shape entirely; no caller inspects vendor payloads.
type LLMProvider interface {
	// Chat sends a completion request and returns the full response.
	// A well-formed response with no tool calls is the common success
	// case, not an error.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the configured provider identifier (e.g. "openai").
	Name() string
}
