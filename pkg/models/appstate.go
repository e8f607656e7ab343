package models

import (
	"github.com/telerag/telerag/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	LLMClient       LLM
	EmbeddingClient EmbeddingClient
	SessionStore    SessionStore
	VectorIndex     VectorIndex
	Config          *config.Config
}
