// Package store persists and searches embedded knowledge chunks.
package store

import (
	"context"
	"math"

	"github.com/koretax/taxchat/pkg/models"
)

// ChunkStore is the contract shared by the seeder (writer) and the
// retriever (reader).
type ChunkStore interface {
	// Replace swaps the entire store contents for the given chunks.
	// There is no incremental upsert: a knowledge-base change means a
	// full rebuild.
	Replace(ctx context.Context, chunks []models.Chunk) error

	// Search returns at most k chunks ranked by cosine similarity to
	// queryVec, keeping only candidates strictly above floor. Ties keep
	// store order.
	Search(ctx context.Context, queryVec []float32, k int, floor float64) ([]models.ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|). Mismatched lengths or a
// zero-magnitude vector score 0, so degenerate embeddings rank as
// minimally relevant instead of producing NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
