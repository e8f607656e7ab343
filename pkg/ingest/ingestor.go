package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/internal"
	"github.com/telerag/telerag/pkg/models"
)

var log = internal.GetLogger()

const upsertAttempts = 2

// Ingestor drives the document ingestion pipeline: extract, chunk, embed
// and upsert into the vector index.
type Ingestor struct {
	embedder  models.EmbeddingClient
	index     models.VectorIndex
	namespace string
	cfg       config.IngestConfig
}

func NewIngestor(
	embedder models.EmbeddingClient,
	index models.VectorIndex,
	namespace string,
	cfg config.IngestConfig,
) *Ingestor {
	return &Ingestor{
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		cfg:       cfg,
	}
}

// IngestDir ingests every supported document under the configured docs
// directory. Files that fail to ingest are logged and skipped so a bad
// document does not abort the whole pass.
func (i *Ingestor) IngestDir(ctx context.Context) ([]*models.IngestResult, error) {
	entries, err := os.ReadDir(i.cfg.DocsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read docs dir %s: %w", i.cfg.DocsDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".txt", ".md":
			paths = append(paths, filepath.Join(i.cfg.DocsDir, entry.Name()))
		}
	}
	sort.Strings(paths)

	var results []*models.IngestResult
	for _, path := range paths {
		result, err := i.Ingest(ctx, path)
		if err != nil {
			log.Errorf("failed to ingest %s: %v", path, err)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// Ingest runs the full pipeline for a single document. Upserts happen in
// batches with a committed cursor after each batch, so an aborted run
// resumes from the first incomplete batch instead of starting over.
func (i *Ingestor) Ingest(ctx context.Context, path string) (*models.IngestResult, error) {
	source := filepath.Base(path)

	text, err := ExtractText(path)
	if err != nil {
		return nil, err
	}

	chunks := SplitChunks(source, text, i.cfg.ChunkSize, i.cfg.MinChunkLength)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no usable chunks extracted from %s", source)
	}

	cursor, err := i.index.GetIngestCursor(ctx, i.namespace, source)
	if err != nil {
		return nil, err
	}
	resumed := cursor >= 0
	if resumed {
		log.Infof("resuming ingestion of %s from batch %d", source, cursor+1)
	}

	result := &models.IngestResult{
		Source:  source,
		Chunks:  len(chunks),
		Resumed: resumed,
	}

	batchSize := i.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	batchDelay := time.Duration(i.cfg.BatchDelay) * time.Millisecond

	batchCount := (len(chunks) + batchSize - 1) / batchSize
	for batch := 0; batch < batchCount; batch++ {
		if batch <= cursor {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := batch * batchSize
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		records, failed := i.embedBatch(ctx, chunks[start:end])
		result.Failed += failed

		err := retry.Do(
			func() error {
				return i.index.Upsert(ctx, i.namespace, records)
			},
			retry.Attempts(upsertAttempts),
			retry.Delay(time.Second),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert batch %d of %s: %w", batch, source, err)
		}
		result.Upserted += len(records)

		if err := i.index.PutIngestCursor(ctx, i.namespace, source, batch); err != nil {
			return nil, err
		}
		log.Debugf("ingested batch %d/%d of %s", batch+1, batchCount, source)

		if batchDelay > 0 && batch < batchCount-1 {
			select {
			case <-time.After(batchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if err := i.index.ClearIngestCursor(ctx, i.namespace, source); err != nil {
		return nil, err
	}

	log.Infof(
		"ingested %s: %d chunks, %d upserted, %d failed",
		source,
		result.Chunks,
		result.Upserted,
		result.Failed,
	)

	return result, nil
}

// embedBatch embeds a batch of chunks in document mode. Chunks that cannot
// be embedded at all are counted as failed and skipped; degraded synthetic
// embeddings are kept so the chunk remains findable by id.
func (i *Ingestor) embedBatch(ctx context.Context, chunks []models.Chunk) ([]models.IndexedRecord, int) {
	records := make([]models.IndexedRecord, 0, len(chunks))
	failed := 0
	for _, chunk := range chunks {
		embedding, err := i.embedder.Embed(ctx, chunk.Text, false)
		if err != nil {
			log.Warnf("failed to embed chunk %s: %v", chunk.ID, err)
			failed++
			continue
		}
		records = append(records, models.IndexedRecord{
			ID:        chunk.ID,
			Embedding: embedding.Vector,
			Metadata: map[string]interface{}{
				"text":   chunk.Text,
				"source": chunk.Source,
			},
		})
	}
	return records, failed
}
