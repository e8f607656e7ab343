package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/models"
)

type fakeEmbedder struct {
	failFor map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string, isQuery bool) (*models.EmbeddingResult, error) {
	if isQuery {
		return nil, errors.New("unexpected query embedding during ingestion")
	}
	if f.failFor[text] {
		return nil, errors.New("embedding failed")
	}
	return &models.EmbeddingResult{Vector: []float32{1, 0, 0, 0}}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 4 }

type fakeIndex struct {
	records     map[string]models.IndexedRecord
	cursors     map[string]int
	upsertCalls int
	upsertErrs  int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		records: map[string]models.IndexedRecord{},
		cursors: map[string]int{},
	}
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, records []models.IndexedRecord) error {
	f.upsertCalls++
	if f.upsertErrs > 0 {
		f.upsertErrs--
		return errors.New("index unavailable")
	}
	for _, record := range records {
		f.records[record.ID] = record
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float32, _ int) ([]models.IndexMatch, error) {
	return nil, nil
}

func (f *fakeIndex) GetIngestCursor(_ context.Context, namespace string, source string) (int, error) {
	cursor, ok := f.cursors[namespace+"/"+source]
	if !ok {
		return -1, nil
	}
	return cursor, nil
}

func (f *fakeIndex) PutIngestCursor(_ context.Context, namespace string, source string, lastBatch int) error {
	f.cursors[namespace+"/"+source] = lastBatch
	return nil
}

func (f *fakeIndex) ClearIngestCursor(_ context.Context, namespace string, source string) error {
	delete(f.cursors, namespace+"/"+source)
	return nil
}

func writeTestDoc(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		ChunkSize:      100,
		MinChunkLength: 10,
		BatchSize:      2,
		BatchDelay:     0,
	}
}

func TestIngestorIngest(t *testing.T) {
	path := writeTestDoc(t, "contract.txt", strings.Repeat("a", 500))
	index := newFakeIndex()
	ingestor := NewIngestor(&fakeEmbedder{}, index, "legal_docs", testIngestConfig())

	result, err := ingestor.Ingest(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "contract.txt", result.Source)
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, 5, result.Upserted)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Resumed)

	// 5 chunks in batches of 2 means 3 upsert calls
	assert.Equal(t, 3, index.upsertCalls)
	assert.Len(t, index.records, 5)

	// metadata carries the chunk text and source
	for _, record := range index.records {
		assert.Equal(t, "contract.txt", record.Metadata["source"])
		assert.NotEmpty(t, record.Metadata["text"])
	}

	// cursor is cleared after a completed run
	cursor, err := index.GetIngestCursor(context.Background(), "legal_docs", "contract.txt")
	require.NoError(t, err)
	assert.Equal(t, -1, cursor)
}

func TestIngestorEmptyDocument(t *testing.T) {
	path := writeTestDoc(t, "empty.txt", "   \n  ")
	ingestor := NewIngestor(&fakeEmbedder{}, newFakeIndex(), "legal_docs", testIngestConfig())

	_, err := ingestor.Ingest(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable chunks")
}

func TestIngestorResumesFromCursor(t *testing.T) {
	path := writeTestDoc(t, "contract.txt", strings.Repeat("a", 500))
	index := newFakeIndex()
	// a previous run committed batch 0 before aborting
	require.NoError(t, index.PutIngestCursor(context.Background(), "legal_docs", "contract.txt", 0))

	ingestor := NewIngestor(&fakeEmbedder{}, index, "legal_docs", testIngestConfig())

	result, err := ingestor.Ingest(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	// batches 1 and 2 remain, so 3 of the 5 chunks are written this run
	assert.Equal(t, 2, index.upsertCalls)
	assert.Equal(t, 3, result.Upserted)
}

func TestIngestorRetriesUpsert(t *testing.T) {
	path := writeTestDoc(t, "contract.txt", strings.Repeat("a", 150))
	index := newFakeIndex()
	index.upsertErrs = 1

	ingestor := NewIngestor(&fakeEmbedder{}, index, "legal_docs", testIngestConfig())

	result, err := ingestor.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Upserted)
}

func TestIngestorUpsertFailureAborts(t *testing.T) {
	path := writeTestDoc(t, "contract.txt", strings.Repeat("a", 150))
	index := newFakeIndex()
	index.upsertErrs = upsertAttempts

	ingestor := NewIngestor(&fakeEmbedder{}, index, "legal_docs", testIngestConfig())

	_, err := ingestor.Ingest(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert batch")
}

func TestIngestorCountsFailedChunks(t *testing.T) {
	content := strings.Repeat("a", 100) + strings.Repeat("b", 100)
	path := writeTestDoc(t, "contract.txt", content)

	embedder := &fakeEmbedder{failFor: map[string]bool{strings.Repeat("b", 100): true}}
	index := newFakeIndex()
	ingestor := NewIngestor(embedder, index, "legal_docs", testIngestConfig())

	result, err := ingestor.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 1, result.Failed)
}

func TestIngestorIngestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte(strings.Repeat("a", 200)), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte(strings.Repeat("b", 200)), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.json"), []byte("{}"), 0o600))

	cfg := testIngestConfig()
	cfg.DocsDir = dir

	index := newFakeIndex()
	ingestor := NewIngestor(&fakeEmbedder{}, index, "legal_docs", cfg)

	results, err := ingestor.IngestDir(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", results[0].Source)
	assert.Equal(t, "b.md", results[1].Source)
}

func TestExtractTextUnsupported(t *testing.T) {
	_, err := ExtractText("doc.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}
