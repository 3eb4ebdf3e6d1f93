package seeder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/karrick/godirwalk"

	"github.com/koretax/taxchat/internal/ai"
	"github.com/koretax/taxchat/internal/kb"
	"github.com/koretax/taxchat/pkg/models"
)

// MockFileSystemWalker feeds a fixed path list to the walk callback.
type MockFileSystemWalker struct {
	paths []string
}

func (m *MockFileSystemWalker) Walk(_ string, options *godirwalk.Options) error {
	for _, p := range m.paths {
		if err := options.Callback(p, nil); err != nil {
			return err
		}
	}
	return nil
}

// MockChunkStore captures Replace calls.
type MockChunkStore struct {
	ReplaceFunc func(ctx context.Context, chunks []models.Chunk) error
	Replaced    [][]models.Chunk
}

func (m *MockChunkStore) Replace(ctx context.Context, chunks []models.Chunk) error {
	m.Replaced = append(m.Replaced, chunks)
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, chunks)
	}
	return nil
}

func (m *MockChunkStore) Search(context.Context, []float32, int, float64) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (m *MockChunkStore) Count(context.Context) (int, error) { return 0, nil }

// MockAIClient lets tests fail embedding on demand.
type MockAIClient struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1, 0}, nil
}

func (m *MockAIClient) Generate(context.Context, string, string, ai.GenerateOptions) (string, error) {
	return "", nil
}

func (m *MockAIClient) Dim() int { return 2 }

func newTestSeeder(st *MockChunkStore, client ai.Client, paths []string, texts map[string]string) *Seeder {
	s := New(st, client, "docs", 2, 0)
	s.Walker = &MockFileSystemWalker{paths: paths}
	s.Extract = func(path string) (string, error) {
		t, ok := texts[path]
		if !ok {
			return "", fmt.Errorf("unexpected path %s", path)
		}
		return t, nil
	}
	return s
}

func TestRunProducesDeterministicChunkRecords(t *testing.T) {
	st := &MockChunkStore{}
	// Walk order is deliberately unsorted; the artifact must not be.
	paths := []string{"docs/b.txt", "docs/a.txt"}
	texts := map[string]string{
		"docs/a.txt": "First fact. Second fact.",
		"docs/b.txt": "Only fact.",
	}
	s := newTestSeeder(st, &MockAIClient{}, paths, texts)
	s.MaxChunkSize = 15
	s.Overlap = 0

	n, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(st.Replaced) != 1 {
		t.Fatalf("expected exactly one Replace call, got %d", len(st.Replaced))
	}
	chunks := st.Replaced[0]
	if n != len(chunks) {
		t.Errorf("reported count %d does not match written chunks %d", n, len(chunks))
	}

	wantIDs := []string{"a.txt_chunk_0", "a.txt_chunk_1", "b.txt_chunk_0"}
	if len(chunks) != len(wantIDs) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(wantIDs), len(chunks), chunks)
	}
	for i, id := range wantIDs {
		if chunks[i].ID != id {
			t.Errorf("chunk %d: expected ID %s, got %s", i, id, chunks[i].ID)
		}
	}

	// Metadata: zero-based, gap-free, with total per source.
	if chunks[0].Metadata.ChunkIndex != 0 || chunks[1].Metadata.ChunkIndex != 1 {
		t.Error("chunk indexes must be zero-based and gap-free")
	}
	if chunks[0].Metadata.TotalChunks != 2 || chunks[2].Metadata.TotalChunks != 1 {
		t.Error("total chunks per source is wrong")
	}
	for _, c := range chunks {
		if c.Content == "" {
			t.Errorf("chunk %s has empty content", c.ID)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %s has no embedding", c.ID)
		}
	}
}

func TestRunIsReproducible(t *testing.T) {
	paths := []string{"docs/a.txt"}
	texts := map[string]string{"docs/a.txt": "Fact one. Fact two. Fact three."}

	run := func() []models.Chunk {
		st := &MockChunkStore{}
		s := newTestSeeder(st, &MockAIClient{}, paths, texts)
		if _, err := s.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return st.Replaced[0]
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("rebuild produced different chunk counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Content != b[i].Content || a[i].Metadata != b[i].Metadata {
			t.Errorf("chunk %d differs between identical rebuilds", i)
		}
	}
}

func TestRunEmbedFailureAbortsBuild(t *testing.T) {
	st := &MockChunkStore{}
	client := &MockAIClient{
		EmbedFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	s := newTestSeeder(st, client, []string{"docs/a.txt"}, map[string]string{"docs/a.txt": "A fact."})

	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected build to fail when embedding fails")
	}
	if len(st.Replaced) != 0 {
		t.Error("no store must be written on a failed build")
	}
}

func TestRunSkipsUnsupportedAndHiddenFiles(t *testing.T) {
	st := &MockChunkStore{}
	paths := []string{"docs/a.txt", "docs/logo.png", "docs/.hidden.txt"}
	texts := map[string]string{"docs/a.txt": "A fact."}
	s := newTestSeeder(st, &MockAIClient{}, paths, texts)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, c := range st.Replaced[0] {
		if c.Source != "a.txt" {
			t.Errorf("unexpected source in store: %s", c.Source)
		}
	}
}

func TestRunEmptyDirectoryFails(t *testing.T) {
	st := &MockChunkStore{}
	s := newTestSeeder(st, &MockAIClient{}, nil, nil)
	if _, err := s.Run(context.Background()); err == nil {
		t.Error("expected error when no documents are found")
	}
}

func TestRunChunkSizeDefaults(t *testing.T) {
	s := New(&MockChunkStore{}, &MockAIClient{}, "docs", 0, 0)
	if s.MaxChunkSize != kb.DefaultMaxChunkSize || s.Overlap != kb.DefaultOverlap {
		t.Errorf("expected default chunking parameters, got %d/%d", s.MaxChunkSize, s.Overlap)
	}
	if s.Workers <= 0 {
		t.Error("worker count must default to a positive value")
	}
}
