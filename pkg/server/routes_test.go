package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/auth"
	"github.com/telerag/telerag/pkg/models"
)

type fakeSessionStore struct {
	sessions map[string]*models.Session
}

func (f *fakeSessionStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeSessionStore) Put(_ context.Context, session *models.Session) (*models.Session, error) {
	f.sessions[session.SessionID] = session
	return session, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessionStore) LogExchange(_ context.Context, _ string, _ string, _ string) error {
	return nil
}

func (f *fakeSessionStore) Close() error { return nil }

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, _ bool) (*models.EmbeddingResult, error) {
	return &models.EmbeddingResult{Vector: []float32{1, 0, 0, 0}}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 4 }

type fakeIndex struct {
	matches []models.IndexMatch
	records map[string]models.IndexedRecord
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: map[string]models.IndexedRecord{}}
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, records []models.IndexedRecord) error {
	for _, record := range records {
		f.records[record.ID] = record
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float32, topK int) ([]models.IndexMatch, error) {
	if topK < len(f.matches) {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) GetIngestCursor(_ context.Context, _ string, _ string) (int, error) {
	return -1, nil
}

func (f *fakeIndex) PutIngestCursor(_ context.Context, _ string, _ string, _ int) error {
	return nil
}

func (f *fakeIndex) ClearIngestCursor(_ context.Context, _ string, _ string) error {
	return nil
}

func testAppState(t *testing.T) (*models.AppState, *fakeSessionStore, *fakeIndex) {
	t.Helper()

	store := &fakeSessionStore{sessions: map[string]*models.Session{}}
	index := newFakeIndex()

	appState := &models.AppState{
		SessionStore:    store,
		EmbeddingClient: &fakeEmbedder{},
		VectorIndex:     index,
		Config: &config.Config{
			Server: config.ServerConfig{Port: 10000},
			Retrieval: config.RetrievalConfig{
				Namespace: "legal_docs",
				TopK:      3,
				MinScore:  0.3,
			},
			Ingest: config.IngestConfig{
				DocsDir:        t.TempDir(),
				ChunkSize:      100,
				MinChunkLength: 10,
				BatchSize:      50,
			},
		},
	}

	return appState, store, index
}

func TestHealthz(t *testing.T) {
	appState, _, _ := testAppState(t)
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get(versionHeader))
}

func TestGetSessionRoute(t *testing.T) {
	appState, store, _ := testAppState(t)
	store.sessions["abc"] = &models.Session{
		SessionID: "abc",
		History: []models.Message{
			{Role: models.RoleUser, Content: "hello"},
		},
	}
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var session models.Session
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &session))
	assert.Equal(t, "abc", session.SessionID)
	assert.Len(t, session.History, 1)
}

func TestGetSessionRouteNotFound(t *testing.T) {
	appState, _, _ := testAppState(t)
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestDeleteSessionRoute(t *testing.T) {
	appState, store, _ := testAppState(t)
	store.sessions["abc"] = &models.Session{SessionID: "abc"}
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/abc", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, store.sessions["abc"])
}

func TestSearchRoute(t *testing.T) {
	appState, _, index := testAppState(t)
	index.matches = []models.IndexMatch{
		{
			ID:    "doc_a_0",
			Score: 0.85,
			Metadata: map[string]interface{}{
				"text":   "the notice period is thirty days",
				"source": "contract.pdf",
			},
		},
		{ID: "doc_a_1", Score: 0.1, Metadata: map[string]interface{}{"text": "noise"}},
	}
	router := setupRouter(appState)

	payload := bytes.NewBufferString(`{"text": "notice period", "top_k": 5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", payload)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var results []models.RetrievalResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "contract.pdf", results[0].Source)
}

func TestSearchRouteValidation(t *testing.T) {
	appState, _, _ := testAppState(t)
	router := setupRouter(appState)

	testCases := []struct {
		name string
		body string
	}{
		{"missing text", `{"top_k": 3}`},
		{"top_k too large", `{"text": "q", "top_k": 100}`},
		{"malformed json", `{`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(tc.body))
			res := httptest.NewRecorder()
			router.ServeHTTP(res, req)

			assert.Equal(t, http.StatusBadRequest, res.Code)
		})
	}
}

func TestIngestDocumentRoute(t *testing.T) {
	appState, _, index := testAppState(t)
	docPath := filepath.Join(appState.Config.Ingest.DocsDir, "contract.txt")
	require.NoError(t, os.WriteFile(docPath, []byte(strings.Repeat("a", 250)), 0o600))
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/contract.txt/ingest", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var result models.IngestResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &result))
	assert.Equal(t, "contract.txt", result.Source)
	assert.Equal(t, 3, result.Chunks)
	assert.Len(t, index.records, 3)
}

func TestIngestDocumentRouteBadFilename(t *testing.T) {
	appState, _, _ := testAppState(t)
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/..%2Fsecret.txt/ingest", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestAuthRequired(t *testing.T) {
	appState, _, _ := testAppState(t)
	appState.Config.Auth = config.AuthConfig{
		Required: true,
		Secret:   "test-secret",
	}
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	tokenAuth := jwtauth.New(auth.JwtAlg, []byte("test-secret"), nil)
	_, tokenString, err := tokenAuth.Encode(nil)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	// authenticated but the session does not exist
	assert.Equal(t, http.StatusNotFound, res.Code)
}
