package llms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telerag/telerag/config"
)

func TestNewLLMClient_InvalidService(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Service = "carrier-pigeon"

	_, err := NewLLMClient(context.Background(), cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid LLM service")
}

func TestNewLLMClient_InvalidModel(t *testing.T) {
	tests := []struct {
		name    string
		service string
		model   string
	}{
		{"unknown openai model", "openai", "gpt-7-ultra"},
		{"unknown anthropic model", "anthropic", "claude-99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.LLM.Service = tt.service
			cfg.LLM.Model = tt.model

			_, err := NewLLMClient(context.Background(), cfg)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid llm model")
		})
	}
}

func TestRetryPolicy_DoesNotRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	shouldRetry, err := retryPolicy(ctx, nil, nil)
	assert.False(t, shouldRetry)
	assert.Error(t, err)
}
