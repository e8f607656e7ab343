package postgres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telerag/telerag/pkg/models"
	"github.com/telerag/telerag/pkg/store"
	"github.com/telerag/telerag/pkg/testutils"
)

// testDimensions matches the width configured in TestMain.
const testDimensions = 4

func unitVector(index int) []float32 {
	vector := make([]float32, testDimensions)
	vector[index] = 1
	return vector
}

func TestVectorIndexUpsertQuery(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)
	namespace := "ns_" + testutils.GenerateRandomString(8)

	records := []models.IndexedRecord{
		{
			ID:        "doc.txt_aaaa_0",
			Embedding: unitVector(0),
			Metadata:  map[string]interface{}{"text": "first chunk", "source": "doc.txt"},
		},
		{
			ID:        "doc.txt_bbbb_1",
			Embedding: unitVector(1),
			Metadata:  map[string]interface{}{"text": "second chunk", "source": "doc.txt"},
		},
	}
	require.NoError(t, dao.Upsert(testCtx, namespace, records))

	matches, err := dao.Query(testCtx, namespace, unitVector(0), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// exact match first with cosine similarity 1, orthogonal vector second
	assert.Equal(t, "doc.txt_aaaa_0", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)
	assert.Equal(t, "first chunk", matches[0].Metadata["text"])
	assert.Equal(t, "doc.txt_bbbb_1", matches[1].ID)
	assert.Less(t, matches[1].Score, matches[0].Score)
}

func TestVectorIndexUpsertReplaces(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)
	namespace := "ns_" + testutils.GenerateRandomString(8)

	record := models.IndexedRecord{
		ID:        "doc.txt_cccc_0",
		Embedding: unitVector(0),
		Metadata:  map[string]interface{}{"text": "original"},
	}
	require.NoError(t, dao.Upsert(testCtx, namespace, []models.IndexedRecord{record}))

	record.Metadata = map[string]interface{}{"text": "replaced"}
	require.NoError(t, dao.Upsert(testCtx, namespace, []models.IndexedRecord{record}))

	matches, err := dao.Query(testCtx, namespace, unitVector(0), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "replaced", matches[0].Metadata["text"])
}

func TestVectorIndexNamespaceIsolation(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)
	namespaceA := "ns_" + testutils.GenerateRandomString(8)
	namespaceB := "ns_" + testutils.GenerateRandomString(8)

	require.NoError(t, dao.Upsert(testCtx, namespaceA, []models.IndexedRecord{
		{ID: "a_0", Embedding: unitVector(0)},
	}))

	matches, err := dao.Query(testCtx, namespaceB, unitVector(0), 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestVectorIndexUpsertEmptyBatch(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)
	assert.NoError(t, dao.Upsert(testCtx, "ns", nil))
}

func TestVectorIndexQueryValidation(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)

	_, err := dao.Query(testCtx, "", unitVector(0), 3)
	assert.Error(t, err)

	_, err = dao.Query(testCtx, "ns", unitVector(0), 0)
	assert.Error(t, err)
}

func TestIngestCursor(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)
	namespace := "ns_" + testutils.GenerateRandomString(8)
	source := "contract.pdf"

	cursor, err := dao.GetIngestCursor(testCtx, namespace, source)
	require.NoError(t, err)
	assert.Equal(t, -1, cursor)

	require.NoError(t, dao.PutIngestCursor(testCtx, namespace, source, 2))

	cursor, err = dao.GetIngestCursor(testCtx, namespace, source)
	require.NoError(t, err)
	assert.Equal(t, 2, cursor)

	// cursor advances in place
	require.NoError(t, dao.PutIngestCursor(testCtx, namespace, source, 5))

	cursor, err = dao.GetIngestCursor(testCtx, namespace, source)
	require.NoError(t, err)
	assert.Equal(t, 5, cursor)

	require.NoError(t, dao.ClearIngestCursor(testCtx, namespace, source))

	cursor, err = dao.GetIngestCursor(testCtx, namespace, source)
	require.NoError(t, err)
	assert.Equal(t, -1, cursor)
}

func TestMapUpsertError(t *testing.T) {
	widthErr := errors.New("ERROR: expected 4 dimensions, not 8 (SQLSTATE=22000)")
	err := mapUpsertError(widthErr)
	assert.ErrorIs(t, err, store.ErrEmbeddingMismatch)

	otherErr := errors.New("ERROR: connection refused")
	err = mapUpsertError(otherErr)
	assert.NotErrorIs(t, err, store.ErrEmbeddingMismatch)
	var storageErr *store.StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestVectorIndexUpsertWidthMismatch(t *testing.T) {
	requireDB(t)

	dao := NewVectorIndex(testDB)
	namespace := "ns_" + testutils.GenerateRandomString(8)

	record := models.IndexedRecord{
		ID:        "doc.txt_dddd_0",
		Embedding: make([]float32, testDimensions*2),
	}
	err := dao.Upsert(testCtx, namespace, []models.IndexedRecord{record})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrEmbeddingMismatch)
}
