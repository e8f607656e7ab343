package models

import "context"

// EmbeddingResult carries an embedding vector together with an explicit
// degraded marker. A degraded vector is a synthetic stand-in generated after
// a provider failure; callers and tests can detect it rather than the
// fallback being invisible.
type EmbeddingResult struct {
	Vector   []float32 `json:"vector"`
	Degraded bool      `json:"degraded"`
	Reason   string    `json:"reason,omitempty"`
}

// EmbeddingClient turns text into a fixed-dimension vector. isQuery signals
// provider-side asymmetric embedding behavior (query vs. document).
type EmbeddingClient interface {
	Embed(ctx context.Context, text string, isQuery bool) (*EmbeddingResult, error)
	// Dimensions returns the fixed width of vectors produced by this client
	Dimensions() int
}
