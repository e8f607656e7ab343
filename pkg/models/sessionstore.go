package models

import "context"

// SessionStore persists per-user rolling history and metadata.
type SessionStore interface {
	// Get returns nil when no session exists for the id
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Put upserts the session, capping history to the configured window
	Put(ctx context.Context, session *Session) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	// LogExchange appends a user/assistant exchange to the append-only log
	LogExchange(ctx context.Context, sessionID, message, response string) error
	Close() error
}
