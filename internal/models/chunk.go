package models

import "time"

// Chunk is one embedded fragment of a source document. Chunks are owned by
// the vector index once appended and are immutable except for bulk deletion
// by source name.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult pairs a chunk with its cosine similarity to a query vector.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievedChunk is a search result stripped to its display fields.
type RetrievedChunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// RetrievedContext is the ranked context set produced for a query.
// Sources is deduplicated in rank order; BestScore is the highest similarity
// across the retained chunks (0 when nothing was retrieved).
type RetrievedContext struct {
	Chunks    []RetrievedChunk `json:"chunks"`
	Sources   []string         `json:"sources"`
	BestScore float64          `json:"best_score"`
}

// IngestResult summarizes a completed ingestion call.
type IngestResult struct {
	Source     string `json:"source"`
	ChunkCount int    `json:"chunk_count"`
}

// DocumentInfo describes one ingested source for the catalog listing.
type DocumentInfo struct {
	Source     string `json:"source"`
	ChunkCount int    `json:"chunk_count"`
}
