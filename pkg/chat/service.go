package chat

import (
	"context"
	"sync"
	"time"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/internal"
	"github.com/telerag/telerag/pkg/models"
	"github.com/telerag/telerag/pkg/retrieval"
)

var log = internal.GetLogger()

const (
	providerApology    = "⚠️ The assistant is temporarily unavailable. Please try again in a moment."
	persistenceApology = "⚠️ Something went wrong on our side. Please try again later."
)

// Searcher is the retrieval surface the chat service depends on.
type Searcher interface {
	Search(ctx context.Context, question string, topK int) []models.RetrievalResult
}

// Service orchestrates a conversation turn: session load, retrieval,
// grounded model call, composition and persistence.
type Service struct {
	llm      models.LLM
	store    models.SessionStore
	searcher Searcher
	window   int
	topK     int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(
	llm models.LLM,
	store models.SessionStore,
	searcher Searcher,
	cfg *config.Config,
) *Service {
	return &Service{
		llm:      llm,
		store:    store,
		searcher: searcher,
		window:   cfg.Memory.HistoryWindow,
		topK:     cfg.Retrieval.TopK,
		locks:    map[string]*sync.Mutex{},
	}
}

// sessionLock returns the mutex serializing turns for one session. Two
// rapid messages from the same user must not interleave their
// read-modify-write of the session history.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Respond runs one conversation turn and returns the user-facing reply.
// Provider and persistence failures are mapped to apology strings so the
// conversation keeps going.
func (s *Service) Respond(ctx context.Context, sessionID string, text string) (string, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		log.Errorf("failed to load session %s: %v", sessionID, err)
		return persistenceApology, nil
	}
	if session == nil {
		log.Infof("creating new session %s", sessionID)
		session = &models.Session{SessionID: sessionID}
	}

	results := s.searcher.Search(ctx, text, s.topK)

	answer, err := s.llm.Call(ctx, sessionID, groundPrompt(text, results),
		models.TrimHistory(session.History, s.window))
	if err != nil {
		log.Errorf("model call failed for session %s: %v", sessionID, err)
		return providerApology, nil
	}

	reply := retrieval.Compose(answer, results)

	session.History = append(session.History,
		models.Message{Role: models.RoleUser, Content: text},
		models.Message{Role: models.RoleAssistant, Content: answer},
	)
	if session.Metadata == nil {
		session.Metadata = map[string]interface{}{}
	}
	session.Metadata["last_interaction"] = time.Now().UTC().Format(time.RFC3339)

	if _, err := s.store.Put(ctx, session); err != nil {
		log.Errorf("failed to save session %s: %v", sessionID, err)
		return persistenceApology, nil
	}

	if err := s.store.LogExchange(ctx, sessionID, text, answer); err != nil {
		// the reply already succeeded, losing a log row is not fatal
		log.Warnf("failed to log exchange for session %s: %v", sessionID, err)
	}

	return reply, nil
}

// groundPrompt injects retrieved excerpts into the model prompt. Without
// matches the user's text is sent as-is.
func groundPrompt(text string, results []models.RetrievalResult) string {
	if len(results) == 0 {
		return text
	}

	excerpts := make([]string, len(results))
	for i, result := range results {
		excerpts[i] = result.Text
	}
	prompt, err := internal.ParsePrompt(groundingPromptTemplate, GroundingPromptTemplateData{
		Excerpts: excerpts,
		Question: text,
	})
	if err != nil {
		log.Errorf("failed to render grounding prompt: %v", err)
		return text
	}
	return prompt
}

// InitSession creates an empty session for a first-contact user. Writing an
// existing session id is harmless.
func (s *Service) InitSession(ctx context.Context, sessionID string) error {
	_, err := s.store.Put(ctx, &models.Session{SessionID: sessionID})
	return err
}

// ClearSession deletes a session's history. The next message starts fresh.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}

	// Drop the lock entry with the lock held so the map does not grow one
	// mutex per user id forever. A turn racing the clear re-creates it.
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()

	return nil
}
