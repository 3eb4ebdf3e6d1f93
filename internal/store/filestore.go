package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/koretax/taxchat/pkg/models"
)

// FileStore keeps the knowledge base in a single JSON artifact: an array
// of chunk records. The artifact is the only on-disk contract between the
// offline seeder and the online retriever.
//
// Reads go through an in-memory cache that is populated on first use and
// can be dropped with Invalidate, so a reseeded artifact takes effect
// without restarting the process.
type FileStore struct {
	path string

	mu     sync.RWMutex
	chunks []models.Chunk
	loaded bool
}

// NewFileStore creates a store backed by the JSON artifact at path. The
// file does not have to exist yet; a missing artifact reads as an empty
// store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the artifact location.
func (s *FileStore) Path() string { return s.path }

// Invalidate drops the cache; the next read reloads from disk.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.chunks = nil
	s.loaded = false
	s.mu.Unlock()
}

// load returns the cached chunks, reading the artifact on first use.
func (s *FileStore) load() ([]models.Chunk, error) {
	s.mu.RLock()
	if s.loaded {
		chunks := s.chunks
		s.mu.RUnlock()
		return chunks, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.chunks, nil
	}

	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.chunks = nil
		s.loaded = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}

	var chunks []models.Chunk
	if err := json.Unmarshal(b, &chunks); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", s.path, err)
	}
	s.chunks = chunks
	s.loaded = true
	return chunks, nil
}

// Replace writes the chunks to a temp file and renames it over the
// artifact, so a concurrent reader never sees a truncated store.
func (s *FileStore) Replace(_ context.Context, chunks []models.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	b, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace store: %w", err)
	}

	s.mu.Lock()
	s.chunks = chunks
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Search ranks every stored chunk by cosine similarity against queryVec,
// keeps candidates strictly above floor, and returns the top k. Sorting is
// stable, so equal scores keep artifact order.
func (s *FileStore) Search(_ context.Context, queryVec []float32, k int, floor float64) ([]models.ScoredChunk, error) {
	chunks, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []models.ScoredChunk{}, nil
	}

	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, models.ScoredChunk{
			Chunk:      c,
			Similarity: CosineSimilarity(queryVec, c.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	out := make([]models.ScoredChunk, 0, k)
	for _, sc := range scored {
		if len(out) >= k {
			break
		}
		if sc.Similarity <= floor {
			break
		}
		out = append(out, sc)
	}
	return out, nil
}

// Count returns the number of stored chunks, surfacing load errors so
// callers can distinguish a missing artifact (count 0) from a corrupt one.
func (s *FileStore) Count(_ context.Context) (int, error) {
	chunks, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}
