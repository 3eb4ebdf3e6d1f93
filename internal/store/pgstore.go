package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/koretax/taxchat/pkg/models"
)

// PGStore is a pgvector-backed ChunkStore for knowledge bases too large to
// scan in process. Ranking semantics match FileStore: cosine similarity,
// strict floor, top k.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to the given database URL.
func NewPGStore(ctx context.Context, url string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PGStore{pool: p}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

// Ping checks the database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the schema for the given embedding dimensionality.
func (s *PGStore) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
  id           TEXT PRIMARY KEY,
  source       TEXT NOT NULL,
  content      TEXT NOT NULL,
  embedding    vector(%d),
  file         TEXT NOT NULL,
  chunk_index  INT NOT NULL,
  total_chunks INT NOT NULL,
  seq          INT NOT NULL,
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chunks_source_idx
  ON chunks (source);

CREATE INDEX IF NOT EXISTS chunks_embedding_idx
  ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// Replace swaps the table contents for the given chunks in one
// transaction, preserving seed order in the seq column so ties stay
// deterministic.
func (s *PGStore) Replace(ctx context.Context, chunks []models.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	const q = `
		INSERT INTO chunks (id, source, content, embedding, file, chunk_index, total_chunks, seq, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())`
	for i, c := range chunks {
		if _, err := tx.Exec(ctx, q,
			c.ID, c.Source, c.Content, pgvector.NewVector(c.Embedding),
			c.Metadata.File, c.Metadata.ChunkIndex, c.Metadata.TotalChunks, i,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Search ranks chunks by cosine similarity in SQL.
func (s *PGStore) Search(ctx context.Context, queryVec []float32, k int, floor float64) ([]models.ScoredChunk, error) {
	const q = `
		SELECT id, source, content, file, chunk_index, total_chunks, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) > $2
		ORDER BY similarity DESC, seq ASC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), floor, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScoredChunk{}
	for rows.Next() {
		var c models.Chunk
		var sim float64
		if err := rows.Scan(
			&c.ID, &c.Source, &c.Content,
			&c.Metadata.File, &c.Metadata.ChunkIndex, &c.Metadata.TotalChunks,
			&c.CreatedAt, &sim,
		); err != nil {
			return nil, err
		}
		out = append(out, models.ScoredChunk{Chunk: c, Similarity: sim})
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
