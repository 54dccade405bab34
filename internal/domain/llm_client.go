package domain

import "context"

// LLMClient defines the capability to send prompts to a text-generation
// model and receive textual responses. Both generation collaborators
// (trait extraction and report composition) share one client instance,
// constructed once at startup and injected where needed.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the LLM output and whether the generation finished.
// Done is false when the model stopped early (token limit, safety stop);
// callers treat an unfinished reply as a failed attempt.
type LLMResponse struct {
	Text string
	Done bool
}
