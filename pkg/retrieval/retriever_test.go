package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/models"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, isQuery bool) (*models.EmbeddingResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !isQuery {
		return nil, errors.New("expected query embedding")
	}
	return &models.EmbeddingResult{Vector: []float32{1, 0, 0, 0}}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 4 }

type fakeIndex struct {
	matches   []models.IndexMatch
	err       error
	namespace string
	topK      int
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, _ []models.IndexedRecord) error {
	return nil
}

func (f *fakeIndex) Query(_ context.Context, namespace string, _ []float32, topK int) ([]models.IndexMatch, error) {
	f.namespace = namespace
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
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

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		Namespace: "legal_docs",
		TopK:      3,
		MinScore:  0.3,
	}
}

func match(id string, score float64, text string, source string) models.IndexMatch {
	metadata := map[string]interface{}{"text": text}
	if source != "" {
		metadata["source"] = source
	}
	return models.IndexMatch{ID: id, Score: score, Metadata: metadata}
}

func TestSearchFiltersByScore(t *testing.T) {
	index := &fakeIndex{matches: []models.IndexMatch{
		match("a", 0.91, "very relevant", "contract.pdf"),
		match("b", 0.55, "somewhat relevant", "contract.pdf"),
		match("c", 0.30, "at the threshold", "contract.pdf"),
		match("d", 0.12, "noise", "contract.pdf"),
	}}
	retriever := NewRetriever(&fakeEmbedder{}, index, testRetrievalConfig())

	results := retriever.Search(context.Background(), "termination clause", 5)

	// score at the threshold is dropped, ordering is preserved
	require.Len(t, results, 2)
	assert.Equal(t, "very relevant", results[0].Text)
	assert.Equal(t, "somewhat relevant", results[1].Text)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Equal(t, "legal_docs", index.namespace)
	assert.Equal(t, 5, index.topK)
}

func TestSearchDefaultTopK(t *testing.T) {
	index := &fakeIndex{}
	retriever := NewRetriever(&fakeEmbedder{}, index, testRetrievalConfig())

	retriever.Search(context.Background(), "question", 0)
	assert.Equal(t, 3, index.topK)
}

func TestSearchSourceFallback(t *testing.T) {
	index := &fakeIndex{matches: []models.IndexMatch{
		match("a", 0.8, "orphan chunk", ""),
	}}
	retriever := NewRetriever(&fakeEmbedder{}, index, testRetrievalConfig())

	results := retriever.Search(context.Background(), "question", 3)

	require.Len(t, results, 1)
	assert.Equal(t, models.SourceUnknown, results[0].Source)
}

func TestSearchEmbedFailureReturnsEmpty(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{err: errors.New("provider down")},
		&fakeIndex{},
		testRetrievalConfig(),
	)

	results := retriever.Search(context.Background(), "question", 3)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearchIndexFailureReturnsEmpty(t *testing.T) {
	retriever := NewRetriever(
		&fakeEmbedder{},
		&fakeIndex{err: errors.New("index down")},
		testRetrievalConfig(),
	)

	results := retriever.Search(context.Background(), "question", 3)
	assert.Empty(t, results)
}
