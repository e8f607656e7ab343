package llms

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/models"
)

const OpenAIAPIKeyNotSetError = "TELERAG_OPENAI_API_KEY is not set" //nolint:gosec

var _ models.LLM = &OpenAILLM{}

func NewOpenAILLM(ctx context.Context, cfg *config.Config) (*OpenAILLM, error) {
	llmc := &OpenAILLM{cfg: cfg}
	err := llmc.init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llmc, nil
}

type OpenAILLM struct {
	llm *openai.Chat
	tkm *tiktoken.Tiktoken
	cfg *config.Config
}

func (llmc *OpenAILLM) init(_ context.Context, cfg *config.Config) error {
	// Initialize the Tiktoken client
	encoding := "cl100k_base"
	tkm, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return err
	}
	llmc.tkm = tkm

	options := GetBaseOpenAIClientOptions(GetOpenAIAPIKey(cfg, LLMClientType), cfg.LLM.Model)
	options = ConfigureOpenAIClientOptions(options, cfg)

	// Create a new client instance with options
	llm, err := NewOpenAIChatClient(options...)
	if err != nil {
		return err
	}
	llmc.llm = llm

	return nil
}

// Call runs a chat completion. The provider holds no session state between
// calls; the persisted history passed in is the sole conversational context.
func (llmc *OpenAILLM) Call(ctx context.Context,
	_ string,
	prompt string,
	history []models.Message,
) (string, error) {
	// If the LLM is not initialized, return an error
	if llmc.llm == nil {
		return "", NewLLMError(InvalidLLMModelError, nil)
	}

	thisCtx, cancel := context.WithTimeout(ctx, OpenAIAPITimeout)
	defer cancel()

	messages := make([]schema.ChatMessage, 0, len(history)+1)
	for _, m := range llmc.truncateHistory(history, prompt) {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, schema.AIChatMessage{Content: m.Content})
		default:
			messages = append(messages, schema.HumanChatMessage{Content: m.Content})
		}
	}
	messages = append(messages, schema.HumanChatMessage{Content: prompt})

	completion, err := llmc.llm.Call(thisCtx, messages,
		llms.WithTemperature(DefaultTemperature))
	if err != nil {
		return "", err
	}

	return completion.GetContent(), nil
}

// truncateHistory drops the oldest turns until history plus prompt fit within
// half the model's context window, leaving headroom for the completion.
func (llmc *OpenAILLM) truncateHistory(
	history []models.Message,
	prompt string,
) []models.Message {
	maxTokens, ok := MaxLLMTokensMap[llmc.cfg.LLM.Model]
	if !ok {
		return history
	}
	budget := maxTokens / 2

	total, _ := llmc.GetTokenCount(prompt)
	counts := make([]int, len(history))
	for i, m := range history {
		counts[i], _ = llmc.GetTokenCount(m.Content)
	}
	for i := range history {
		total += counts[i]
	}

	start := 0
	for total > budget && start < len(history) {
		total -= counts[start]
		start++
	}

	return history[start:]
}

// GetTokenCount returns the number of tokens in the text
func (llmc *OpenAILLM) GetTokenCount(text string) (int, error) {
	return len(llmc.tkm.Encode(text, nil, nil)), nil
}
