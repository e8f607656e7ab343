package models

import "context"

// LLM runs a chat completion against a hosted model. The persisted history
// is authoritative: implementations re-hydrate any provider-side session
// state from it on every call, so restarts lose nothing.
type LLM interface {
	Call(ctx context.Context, sessionID string, prompt string, history []Message) (string, error)
	// GetTokenCount returns the number of tokens in the given text
	GetTokenCount(text string) (int, error)
}
