package models

import "context"

// VectorIndex is the boundary to the similarity-search store. Namespace is a
// flat partition key; queries never cross namespaces.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []IndexedRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]IndexMatch, error)
	// GetIngestCursor returns the last committed batch index for a source, or
	// -1 when no ingestion is in flight.
	GetIngestCursor(ctx context.Context, namespace, source string) (int, error)
	PutIngestCursor(ctx context.Context, namespace, source string, batch int) error
	ClearIngestCursor(ctx context.Context, namespace, source string) error
}
