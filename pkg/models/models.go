package models

import "time"

// Chunk is the persisted unit of retrievable knowledge. All chunks in a
// store carry embeddings of the same dimensionality.
type Chunk struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Content   string        `json:"content"`
	Embedding []float32     `json:"embedding"`
	Metadata  ChunkMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChunkMetadata records where a chunk came from and its position within
// the source document. ChunkIndex is zero-based and gap-free per source.
type ChunkMetadata struct {
	File        string `json:"file"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

// ScoredChunk is a chunk paired with its query-time cosine similarity.
// Scores are transient; they are never persisted.
type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
