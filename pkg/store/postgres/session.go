package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	"github.com/telerag/telerag/pkg/models"
	"github.com/telerag/telerag/pkg/store"
)

// SessionDAO persists conversation sessions to Postgres.
type SessionDAO struct {
	db            *bun.DB
	historyWindow int
}

// NewSessionStore returns a SessionDAO backed by the given bun.DB.
// historyWindow caps the number of messages retained per session.
func NewSessionStore(db *bun.DB, historyWindow int) *SessionDAO {
	return &SessionDAO{db: db, historyWindow: historyWindow}
}

// Get retrieves a session by its session id. Returns nil, nil when the
// session does not exist or has been deleted.
func (dao *SessionDAO) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, store.NewStorageError("sessionID cannot be empty", nil)
	}

	session := SessionSchema{}
	err := dao.db.NewSelect().
		Model(&session).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.NewStorageError("failed to get session", err)
	}

	retSession := models.Session{}
	err = copier.Copy(&retSession, &session)
	if err != nil {
		return nil, store.NewStorageError("failed to copy session", err)
	}
	retSession.MessageCount = len(session.History)

	return &retSession, nil
}

// Put upserts a session. The session's history is capped to the configured
// window before writing and metadata is deep-merged into any existing
// metadata. Writes to the same session id are serialized with an advisory
// lock so concurrent updates cannot interleave.
func (dao *SessionDAO) Put(ctx context.Context, session *models.Session) (*models.Session, error) {
	if session == nil {
		return nil, store.NewStorageError("session cannot be nil", nil)
	}
	if session.SessionID == "" {
		return nil, store.NewStorageError("sessionID cannot be empty", nil)
	}

	tx, err := dao.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, store.NewStorageError("failed to begin transaction", err)
	}
	defer rollbackOnError(tx)

	// Transaction-scoped: released automatically at commit or rollback.
	if err := acquireAdvisoryXactLock(ctx, tx, session.SessionID); err != nil {
		return nil, err
	}

	metadata, err := dao.mergeMetadata(ctx, tx, session.SessionID, session.Metadata)
	if err != nil {
		return nil, err
	}

	history := models.TrimHistory(session.History, dao.historyWindow)
	sessionDB := SessionSchema{
		SessionID:    session.SessionID,
		History:      history,
		Metadata:     metadata,
		MessageCount: len(history),
	}
	_, err = tx.NewInsert().
		Model(&sessionDB).
		On("CONFLICT (session_id) DO UPDATE").
		Set("history = EXCLUDED.history").
		Set("metadata = EXCLUDED.metadata").
		Set("message_count = EXCLUDED.message_count").
		Set("deleted_at = NULL").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to put session", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.NewStorageError("failed to commit session", err)
	}

	retSession := models.Session{}
	err = copier.Copy(&retSession, &sessionDB)
	if err != nil {
		return nil, store.NewStorageError("failed to copy session", err)
	}
	retSession.MessageCount = len(sessionDB.History)

	return &retSession, nil
}

// mergeMetadata merges incoming metadata over any metadata already stored
// for the session. The caller must hold the session's advisory lock.
func (dao *SessionDAO) mergeMetadata(
	ctx context.Context,
	tx bun.Tx,
	sessionID string,
	metadata map[string]interface{},
) (map[string]interface{}, error) {
	if len(metadata) == 0 {
		metadata = map[string]interface{}{}
	}

	dbMetadata := map[string]interface{}{}
	err := tx.NewSelect().
		Model((*SessionSchema)(nil)).
		Column("metadata").
		Where("session_id = ?", sessionID).
		Scan(ctx, &dbMetadata)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, store.NewStorageError("failed to get session metadata", err)
	}

	if err := mergo.Merge(&dbMetadata, metadata, mergo.WithOverride); err != nil {
		return nil, store.NewStorageError("failed to merge metadata", err)
	}

	return dbMetadata, nil
}

// Delete soft-deletes a session. Deleting an unknown session is a no-op.
func (dao *SessionDAO) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return store.NewStorageError("sessionID cannot be empty", nil)
	}

	_, err := dao.db.NewDelete().
		Model((*SessionSchema)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return store.NewStorageError(fmt.Sprintf("failed to delete session %s", sessionID), err)
	}

	return nil
}

// LogExchange appends a user message and the bot's response to the message
// log. The log is append-only and kept independently of the capped session
// history.
func (dao *SessionDAO) LogExchange(ctx context.Context, sessionID string, message string, response string) error {
	if sessionID == "" {
		return store.NewStorageError("sessionID cannot be empty", nil)
	}

	logDB := MessageLogSchema{
		SessionID: sessionID,
		Message:   message,
		Response:  response,
	}
	_, err := dao.db.NewInsert().Model(&logDB).Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to log exchange", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (dao *SessionDAO) Close() error {
	return dao.db.Close()
}
