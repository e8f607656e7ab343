package retrieval

import (
	"context"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/internal"
	"github.com/telerag/telerag/pkg/models"
)

var log = internal.GetLogger()

// Retriever answers similarity searches against the vector index. Failures
// degrade to "no context" rather than aborting the conversation.
type Retriever struct {
	embedder models.EmbeddingClient
	index    models.VectorIndex
	cfg      config.RetrievalConfig
}

func NewRetriever(
	embedder models.EmbeddingClient,
	index models.VectorIndex,
	cfg config.RetrievalConfig,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
	}
}

// Search embeds the question and returns the most similar chunks, most
// similar first. Results at or below the configured minimum score are
// dropped. Any failure is logged and yields an empty result set.
func (r *Retriever) Search(ctx context.Context, question string, topK int) []models.RetrievalResult {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	embedding, err := r.embedder.Embed(ctx, question, true)
	if err != nil {
		log.Errorf("failed to embed query: %v", err)
		return []models.RetrievalResult{}
	}

	matches, err := r.index.Query(ctx, r.cfg.Namespace, embedding.Vector, topK)
	if err != nil {
		log.Errorf("failed to query index: %v", err)
		return []models.RetrievalResult{}
	}

	results := make([]models.RetrievalResult, 0, len(matches))
	for _, match := range matches {
		if match.Score <= r.cfg.MinScore {
			continue
		}
		results = append(results, models.RetrievalResult{
			Text:   metadataString(match.Metadata, "text"),
			Score:  match.Score,
			Source: sourceOf(match.Metadata),
		})
	}

	log.Debugf("retrieved %d of %d matches above score %v", len(results), len(matches), r.cfg.MinScore)

	return results
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	value, _ := metadata[key].(string)
	return value
}

func sourceOf(metadata map[string]interface{}) string {
	source := metadataString(metadata, "source")
	if source == "" {
		return models.SourceUnknown
	}
	return source
}
