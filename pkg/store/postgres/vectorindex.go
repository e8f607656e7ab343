package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/telerag/telerag/pkg/models"
	"github.com/telerag/telerag/pkg/store"
)

// VectorIndexDAO stores and queries chunk embeddings in Postgres using
// pgvector. Records are partitioned by namespace.
type VectorIndexDAO struct {
	db *bun.DB
}

func NewVectorIndex(db *bun.DB) *VectorIndexDAO {
	return &VectorIndexDAO{db: db}
}

// Upsert writes a batch of embedded records to the index. A record whose
// chunk id already exists in the namespace has its embedding and metadata
// replaced, so re-ingesting a document is idempotent.
func (dao *VectorIndexDAO) Upsert(ctx context.Context, namespace string, records []models.IndexedRecord) error {
	if namespace == "" {
		return store.NewStorageError("namespace cannot be empty", nil)
	}
	if len(records) == 0 {
		return nil
	}

	embeddingRows := make([]ChunkEmbeddingSchema, len(records))
	for i, record := range records {
		embeddingRows[i] = ChunkEmbeddingSchema{
			Namespace: namespace,
			ChunkID:   record.ID,
			Embedding: pgvector.NewVector(record.Embedding),
			Metadata:  record.Metadata,
		}
	}

	_, err := dao.db.NewInsert().
		Model(&embeddingRows).
		On("CONFLICT (namespace, chunk_id) DO UPDATE").
		Set("embedding = EXCLUDED.embedding").
		Set("metadata = EXCLUDED.metadata").
		Exec(ctx)
	if err != nil {
		return mapUpsertError(err)
	}

	return nil
}

// mapUpsertError surfaces pgvector column width violations as an
// EmbeddingMismatchError so callers can distinguish a misconfigured
// embedding width from an ordinary storage failure. pgvector reports these
// as "expected N dimensions, not M".
func mapUpsertError(err error) error {
	if strings.Contains(err.Error(), "dimensions") {
		return store.NewEmbeddingMismatchError(err)
	}
	return store.NewStorageError("failed to upsert embeddings", err)
}

type chunkMatchRow struct {
	bun.BaseModel `bun:"table:chunk_embedding,alias:ce"`

	ChunkID  string                 `bun:"chunk_id"`
	Metadata map[string]interface{} `bun:"metadata,type:jsonb"`
	Score    float64                `bun:"score"`
}

// Query returns the topK records in the namespace closest to the query
// vector by cosine similarity, most similar first. Scores are cosine
// similarity in [-1, 1].
func (dao *VectorIndexDAO) Query(
	ctx context.Context,
	namespace string,
	vector []float32,
	topK int,
) ([]models.IndexMatch, error) {
	if namespace == "" {
		return nil, store.NewStorageError("namespace cannot be empty", nil)
	}
	if topK <= 0 {
		return nil, store.NewStorageError("topK must be greater than zero", nil)
	}

	queryVector := pgvector.NewVector(vector)

	var matchRows []chunkMatchRow
	// Ordering by the distance operator rather than the derived score lets
	// Postgres use the HNSW index when one exists.
	err := dao.db.NewSelect().
		Model(&matchRows).
		Column("chunk_id", "metadata").
		ColumnExpr("1 - (embedding <=> ?) AS score", queryVector).
		Where("namespace = ?", namespace).
		OrderExpr("embedding <=> ?", queryVector).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to query embeddings", err)
	}

	matches := make([]models.IndexMatch, len(matchRows))
	for i, row := range matchRows {
		matches[i] = models.IndexMatch{
			ID:       row.ChunkID,
			Score:    row.Score,
			Metadata: row.Metadata,
		}
	}

	return matches, nil
}

// GetIngestCursor returns the last completed batch index for a source in a
// namespace, or -1 when no ingestion has been recorded.
func (dao *VectorIndexDAO) GetIngestCursor(ctx context.Context, namespace string, source string) (int, error) {
	state := IngestStateSchema{}
	err := dao.db.NewSelect().
		Model(&state).
		Where("namespace = ?", namespace).
		Where("source = ?", source).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return -1, nil
		}
		return -1, store.NewStorageError("failed to get ingest cursor", err)
	}

	return state.LastBatch, nil
}

// PutIngestCursor records the last completed batch index for a source.
func (dao *VectorIndexDAO) PutIngestCursor(ctx context.Context, namespace string, source string, lastBatch int) error {
	state := IngestStateSchema{
		Namespace: namespace,
		Source:    source,
		LastBatch: lastBatch,
	}
	_, err := dao.db.NewInsert().
		Model(&state).
		On("CONFLICT (namespace, source) DO UPDATE").
		Set("last_batch = EXCLUDED.last_batch").
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to put ingest cursor", err)
	}

	return nil
}

// ClearIngestCursor removes the cursor for a source after a completed run.
func (dao *VectorIndexDAO) ClearIngestCursor(ctx context.Context, namespace string, source string) error {
	_, err := dao.db.NewDelete().
		Model((*IngestStateSchema)(nil)).
		Where("namespace = ?", namespace).
		Where("source = ?", source).
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to clear ingest cursor", err)
	}

	return nil
}

var _ models.VectorIndex = &VectorIndexDAO{}
var _ models.SessionStore = &SessionDAO{}
