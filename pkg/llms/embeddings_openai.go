package llms

import (
	"context"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/telerag/telerag/config"
)

const EmbeddingsOpenAIAPIKeyNotSetError = "TELERAG_OPENAI_API_KEY is not set for the embeddings client" //nolint:gosec

func newOpenAIEmbedder(_ context.Context, cfg *config.Config) (*openAIEmbedder, error) {
	apiKey := GetOpenAIAPIKey(cfg, EmbeddingsClientType)

	// Even if it will only be used for embeddings, we must pass a valid
	// chat model to the langchain openai client builder
	options := GetBaseOpenAIClientOptions(apiKey, getValidOpenAIModel())
	options = ConfigureOpenAIClientOptions(options, cfg)

	client, err := openai.NewChat(options...)
	if err != nil {
		return nil, err
	}

	return &openAIEmbedder{client: client}, nil
}

type openAIEmbedder struct {
	client *openai.Chat
}

// EmbedText embeds a single text. OpenAI embeddings are symmetric, so isQuery
// is ignored.
func (e *openAIEmbedder) EmbedText(
	ctx context.Context,
	text string,
	_ bool,
) ([]float32, error) {
	thisCtx, cancel := context.WithTimeout(ctx, OpenAIAPITimeout)
	defer cancel()

	embeddings, err := e.client.CreateEmbedding(thisCtx, []string{text})
	if err != nil {
		return nil, NewEmbeddingError("error while creating embedding", err)
	}
	if len(embeddings) == 0 {
		return nil, NewEmbeddingError("no embedding returned", nil)
	}

	return embeddings[0], nil
}

func getValidOpenAIModel() string {
	for k := range ValidOpenAILLMs {
		return k
	}
	return "gpt-3.5-turbo"
}
