package llms

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/telerag/telerag/config"
)

const EmbeddingsGoogleAPIKeyNotSetError = "TELERAG_GOOGLE_API_KEY is not set" //nolint:gosec

func newGoogleEmbedder(ctx context.Context, cfg *config.Config) (*googleEmbedder, error) {
	apiKey := cfg.LLM.GoogleAPIKey
	if apiKey == "" {
		log.Fatal(EmbeddingsGoogleAPIKeyNotSetError)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &googleEmbedder{client: client, model: cfg.Embeddings.Model}, nil
}

type googleEmbedder struct {
	client *genai.Client
	model  string
}

// EmbedText embeds a single text. Gemini embeddings are asymmetric: the task
// type tells the provider whether the text is a retrieval query or an
// indexed document.
func (e *googleEmbedder) EmbedText(
	ctx context.Context,
	text string,
	isQuery bool,
) ([]float32, error) {
	thisCtx, cancel := context.WithTimeout(ctx, GoogleAPITimeout)
	defer cancel()

	// A fresh model handle per call; TaskType on a shared handle would race
	em := e.client.EmbeddingModel(e.model)
	if isQuery {
		em.TaskType = genai.TaskTypeRetrievalQuery
	} else {
		em.TaskType = genai.TaskTypeRetrievalDocument
	}

	resp, err := em.EmbedContent(thisCtx, genai.Text(text))
	if err != nil {
		return nil, NewEmbeddingError("error while creating embedding", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, NewEmbeddingError("no embedding returned", nil)
	}

	return resp.Embedding.Values, nil
}
