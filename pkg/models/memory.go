package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversational turn in a session's rolling history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds the rolling history and metadata for a single user.
type Session struct {
	SessionID    string                 `json:"session_id"`
	History      []Message              `json:"history"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	MessageCount int                    `json:"message_count"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// TrimHistory returns the most recent window entries of history.
func TrimHistory(history []Message, window int) []Message {
	if window <= 0 || len(history) <= window {
		return history
	}
	return history[len(history)-window:]
}
