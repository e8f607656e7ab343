package models

// SourceUnknown is the provenance sentinel used when an indexed record's
// metadata lacks a source.
const SourceUnknown = "unknown"

// RetrievalResult is a single similarity-search match surfaced to the
// conversational pipeline.
type RetrievalResult struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// SearchPayload is the request body for the retrieval search API.
type SearchPayload struct {
	Text string `json:"text" validate:"required"`
	TopK int    `json:"top_k" validate:"omitempty,gte=1,lte=50"`
}

// IndexMatch is a raw match returned by the vector index before score
// filtering and metadata mapping.
type IndexMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
