package llms

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/models"
)

// degenerateEpsilon is the component magnitude below which a returned vector
// is treated as a failed embedding.
const degenerateEpsilon = 1e-4

// syntheticStdDev is the per-dimension standard deviation of fallback vectors.
const syntheticStdDev = 0.02

type EmbeddingError struct {
	message       string
	originalError error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error: %s (original error: %v)", e.message, e.originalError)
}

func NewEmbeddingError(message string, originalError error) *EmbeddingError {
	return &EmbeddingError{message: message, originalError: originalError}
}

// textEmbedder is the provider-side contract. isQuery signals asymmetric
// embedding behavior for providers that distinguish queries from documents.
type textEmbedder interface {
	EmbedText(ctx context.Context, text string, isQuery bool) ([]float32, error)
}

var _ models.EmbeddingClient = &Embedder{}

// NewEmbedder returns an embedding client for the configured service.
func NewEmbedder(ctx context.Context, cfg *config.Config) (*Embedder, error) {
	var provider textEmbedder
	var err error

	switch cfg.Embeddings.Service {
	case "openai", "":
		provider, err = newOpenAIEmbedder(ctx, cfg)
	case "google":
		provider, err = newGoogleEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("invalid embeddings service: %s", cfg.Embeddings.Service)
	}
	if err != nil {
		return nil, err
	}

	return &Embedder{
		provider:   provider,
		dimensions: cfg.Embeddings.Dimensions,
	}, nil
}

// Embedder wraps a provider embedding client. Provider failures and
// degenerate results never propagate: they are replaced by a synthetic
// Gaussian vector marked Degraded, so ingestion and query stay total at the
// cost of silently worse retrieval quality for the affected text.
type Embedder struct {
	provider   textEmbedder
	dimensions int
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns a vector of exactly Dimensions floats. Empty text after
// trimming is a hard input error and is never swallowed.
func (e *Embedder) Embed(
	ctx context.Context,
	text string,
	isQuery bool,
) (*models.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewEmbeddingError("cannot embed empty text", nil)
	}

	vector, err := e.provider.EmbedText(ctx, text, isQuery)

	var reason string
	switch {
	case err != nil:
		reason = fmt.Sprintf("provider error: %v", err)
	case len(vector) != e.dimensions:
		reason = fmt.Sprintf("dimension mismatch: got %d want %d", len(vector), e.dimensions)
	case isDegenerate(vector):
		reason = "degenerate near-zero embedding"
	default:
		return &models.EmbeddingResult{Vector: vector}, nil
	}

	log.Warnf("embedding degraded, using synthetic vector: %s", reason)

	return &models.EmbeddingResult{
		Vector:   SyntheticVector(e.dimensions),
		Degraded: true,
		Reason:   reason,
	}, nil
}

// isDegenerate reports whether every component is within epsilon of zero.
func isDegenerate(vector []float32) bool {
	for _, v := range vector {
		if math.Abs(float64(v)) >= degenerateEpsilon {
			return false
		}
	}
	return true
}

// SyntheticVector draws a zero-mean, small-variance Gaussian vector of the
// given dimension.
func SyntheticVector(dimensions int) []float32 {
	vector := make([]float32, dimensions)
	for i := range vector {
		vector[i] = float32(rand.NormFloat64() * syntheticStdDev) //nolint:gosec
	}
	return vector
}
