// Package llm provides the language model service used by the pipeline.
// Inference is an opaque hosted operation; this package owns the chat
// request shape and the mutable system prompt the handlers update each turn.
package llm

import "context"

// Service is the narrow surface the pipeline depends on.
type Service interface {
	// SetSystemPrompt replaces the system prompt used for subsequent
	// generations. Safe to call concurrently with Generate.
	SetSystemPrompt(prompt string)

	// SystemPrompt returns the prompt currently in effect.
	SystemPrompt() string

	// Generate produces the agent's reply to one user utterance.
	Generate(ctx context.Context, userText string) (string, error)

	Name() string
}
