package llms

import (
	"context"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/models"
)

const AnthropicAPITimeout = 30 * time.Second
const AnthropicAPIKeyNotSetError = "TELERAG_ANTHROPIC_API_KEY is not set" //nolint:gosec

var _ models.LLM = &AnthropicLLM{}

func NewAnthropicLLM(ctx context.Context, cfg *config.Config) (*AnthropicLLM, error) {
	llmc := &AnthropicLLM{cfg: cfg}
	err := llmc.init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llmc, nil
}

type AnthropicLLM struct {
	client *anthropic.LLM
	cfg    *config.Config
}

func (llmc *AnthropicLLM) init(_ context.Context, cfg *config.Config) error {
	if cfg.LLM.AnthropicAPIKey == "" {
		log.Fatal(AnthropicAPIKeyNotSetError)
	}

	options := []anthropic.Option{
		anthropic.WithModel(cfg.LLM.Model),
		anthropic.WithToken(cfg.LLM.AnthropicAPIKey),
	}

	// Create a new client instance with options
	llm, err := anthropic.New(options...)
	if err != nil {
		return err
	}
	llmc.client = llm

	return nil
}

// Call runs a completion against the Anthropic text API. History is flattened
// into the prompt turn by turn; the provider keeps no session state.
func (llmc *AnthropicLLM) Call(ctx context.Context,
	_ string,
	prompt string,
	history []models.Message,
) (string, error) {
	// If the LLM is not initialized, return an error
	if llmc.client == nil {
		return "", NewLLMError(InvalidLLMModelError, nil)
	}

	thisCtx, cancel := context.WithTimeout(ctx, AnthropicAPITimeout)
	defer cancel()

	var sb strings.Builder
	for _, m := range history {
		if m.Role == models.RoleAssistant {
			sb.WriteString("\n\nAssistant: ")
		} else {
			sb.WriteString("\n\nHuman: ")
		}
		sb.WriteString(m.Content)
	}
	sb.WriteString("\n\nHuman: ")
	sb.WriteString(prompt)
	sb.WriteString("\n\nAssistant:")

	completion, err := llmc.client.Call(thisCtx, sb.String(),
		llms.WithTemperature(DefaultTemperature))
	if err != nil {
		return "", err
	}

	return completion, nil
}

// GetTokenCount returns the number of tokens in the text.
// Return 0 for now, since we don't have a token count function for Anthropic
func (llmc *AnthropicLLM) GetTokenCount(_ string) (int, error) {
	return 0, nil
}
