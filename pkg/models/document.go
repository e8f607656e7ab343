package models

// Chunk is a bounded-size slice of source document text. It is the unit of
// embedding and indexing and is discarded once upserted; only the vector
// index retains its content.
type Chunk struct {
	// ID is deterministic: <source>_<content hash prefix>_<index>. Identical
	// content re-ingests to the same id, making re-ingestion idempotent.
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Index  int    `json:"index"`
}

// IndexedRecord is the unit stored in the vector index.
type IndexedRecord struct {
	ID        string                 `json:"id"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IngestResult reports the outcome of a single ingestion pass.
type IngestResult struct {
	Source   string `json:"source"`
	Chunks   int    `json:"chunks"`
	Upserted int    `json:"upserted"`
	Failed   int    `json:"failed"`
	// Resumed is true when the pass continued from a persisted batch cursor
	// left behind by an earlier aborted run.
	Resumed bool `json:"resumed"`
}
