package llms

import (
	"time"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/telerag/telerag/config"
)

const OpenAIAPITimeout = 90 * time.Second
const MaxOpenAIAPIRequestAttempts = 5

type ClientType string

const (
	EmbeddingsClientType ClientType = "embeddings"
	LLMClientType        ClientType = "llm"
)

func NewOpenAIChatClient(options ...openai.Option) (*openai.Chat, error) {
	client, err := openai.NewChat(options...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func GetOpenAIAPIKey(cfg *config.Config, clientType ClientType) string {
	apiKey := cfg.LLM.OpenAIAPIKey
	// If the key is not set, log a fatal error and exit
	if apiKey == "" {
		if clientType == EmbeddingsClientType {
			log.Fatal(EmbeddingsOpenAIAPIKeyNotSetError)
		}
		log.Fatal(OpenAIAPIKeyNotSetError)
	}
	return apiKey
}

func GetBaseOpenAIClientOptions(apiKey, validModel string) []openai.Option {
	retryableHTTPClient := NewRetryableHTTPClient(MaxOpenAIAPIRequestAttempts, OpenAIAPITimeout)

	options := make([]openai.Option, 0)
	options = append(
		options,
		openai.WithHTTPClient(retryableHTTPClient.StandardClient()),
		openai.WithModel(validModel),
		openai.WithToken(apiKey),
	)

	return options
}

func ConfigureOpenAIClientOptions(options []openai.Option, cfg *config.Config) []openai.Option {
	if cfg.LLM.OpenAIEndpoint != "" {
		options = append(options, openai.WithBaseURL(cfg.LLM.OpenAIEndpoint))
	}
	if cfg.Embeddings.Model != "" {
		options = append(options, openai.WithEmbeddingModel(cfg.Embeddings.Model))
	}

	return options
}
