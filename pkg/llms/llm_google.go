package llms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/models"
)

const GoogleAPITimeout = 60 * time.Second
const GoogleAPIKeyNotSetError = "TELERAG_GOOGLE_API_KEY is not set" //nolint:gosec

const genaiRoleUser = "user"
const genaiRoleModel = "model"

var _ models.LLM = &GoogleLLM{}

func NewGoogleLLM(ctx context.Context, cfg *config.Config) (*GoogleLLM, error) {
	llmc := &GoogleLLM{cfg: cfg}
	err := llmc.init(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llmc, nil
}

// GoogleLLM runs chat completions against the Gemini API. Chat sessions are
// client-side state in the genai SDK, so a fresh one is built from the
// persisted history on every call. The persisted history stays authoritative
// across restarts and nothing accumulates per conversation.
type GoogleLLM struct {
	client *genai.Client
	cfg    *config.Config
}

func (llmc *GoogleLLM) init(ctx context.Context, cfg *config.Config) error {
	if cfg.LLM.GoogleAPIKey == "" {
		log.Fatal(GoogleAPIKeyNotSetError)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.LLM.GoogleAPIKey))
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	llmc.client = client

	return nil
}

func (llmc *GoogleLLM) Call(ctx context.Context,
	_ string,
	prompt string,
	history []models.Message,
) (string, error) {
	if llmc.client == nil {
		return "", NewLLMError(InvalidLLMModelError, nil)
	}

	thisCtx, cancel := context.WithTimeout(ctx, GoogleAPITimeout)
	defer cancel()

	model := llmc.client.GenerativeModel(llmc.cfg.LLM.Model)
	cs := model.StartChat()
	cs.History = historyToContent(history)

	resp, err := cs.SendMessage(thisCtx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "", NewLLMError("empty completion from gemini", nil)
	}

	return text, nil
}

func historyToContent(history []models.Message) []*genai.Content {
	content := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genaiRoleUser
		if m.Role == models.RoleAssistant {
			role = genaiRoleModel
		}
		content = append(content, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return content
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// GetTokenCount returns the number of tokens in the text.
// Return 0 for now; Gemini token counting requires a round trip to the API
func (llmc *GoogleLLM) GetTokenCount(_ string) (int, error) {
	return 0, nil
}
