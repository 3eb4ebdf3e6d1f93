// Package seeder builds the embedded knowledge store from a directory of
// documents. A build replaces the whole store; any failure aborts it so a
// partial knowledge base is never persisted.
package seeder

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/koretax/taxchat/internal/ai"
	"github.com/koretax/taxchat/internal/kb"
	"github.com/koretax/taxchat/internal/store"
	"github.com/koretax/taxchat/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// Seeder reads every supported document under DocsDir, chunks it, embeds
// each chunk, and replaces the store contents.
type Seeder struct {
	Store   store.ChunkStore
	Client  ai.Client
	DocsDir string

	// Workers bounds concurrent embedding requests; Limiter throttles
	// their rate. Ordering of the final artifact does not depend on
	// either: chunks are laid out per (file, index) before the fan-out.
	Workers int
	Limiter *rate.Limiter

	MaxChunkSize int
	Overlap      int

	Walker  FileSystemWalker
	Extract func(path string) (string, error)
}

// New creates a Seeder with default walking, extraction, and chunking.
func New(s store.ChunkStore, client ai.Client, docsDir string, workers int, reqPerSec float64) *Seeder {
	if workers <= 0 {
		workers = 4
	}
	var limiter *rate.Limiter
	if reqPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(reqPerSec), 1)
	}
	return &Seeder{
		Store:        s,
		Client:       client,
		DocsDir:      docsDir,
		Workers:      workers,
		Limiter:      limiter,
		MaxChunkSize: kb.DefaultMaxChunkSize,
		Overlap:      kb.DefaultOverlap,
		Walker:       &DefaultFileSystemWalker{},
		Extract:      kb.ExtractFile,
	}
}

// Run builds the store and returns the number of chunks written.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	files, err := s.collectFiles()
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no documents found under %s", s.DocsDir)
	}

	chunks, err := s.chunkFiles(files)
	if err != nil {
		return 0, err
	}
	log.Info().Int("files", len(files)).Int("chunks", len(chunks)).Msg("chunking complete")

	if err := s.embedAll(ctx, chunks); err != nil {
		return 0, err
	}

	if err := s.Store.Replace(ctx, chunks); err != nil {
		return 0, fmt.Errorf("persist store: %w", err)
	}
	return len(chunks), nil
}

// collectFiles walks DocsDir and returns supported document paths in
// sorted order, so rebuilds from identical input are identical.
func (s *Seeder) collectFiles() ([]string, error) {
	var files []string
	err := s.Walker.Walk(s.DocsDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") || !kb.SupportedExt(base) {
				return nil
			}
			files = append(files, path)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.DocsDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// chunkFiles extracts and chunks every file, producing records without
// embeddings in (file, chunk index) order.
func (s *Seeder) chunkFiles(files []string) ([]models.Chunk, error) {
	now := time.Now().UTC()
	var chunks []models.Chunk
	for _, path := range files {
		text, err := s.Extract(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		base := filepath.Base(path)
		parts := kb.ChunkText(text, s.MaxChunkSize, s.Overlap)
		if len(parts) == 0 {
			log.Warn().Str("file", base).Msg("document produced no chunks, skipping")
			continue
		}
		for i, content := range parts {
			chunks = append(chunks, models.Chunk{
				ID:      fmt.Sprintf("%s_chunk_%d", base, i),
				Source:  base,
				Content: content,
				Metadata: models.ChunkMetadata{
					File:        base,
					ChunkIndex:  i,
					TotalChunks: len(parts),
				},
				CreatedAt: now,
			})
		}
	}
	return chunks, nil
}

// embedAll fills in chunk embeddings with a bounded worker pool. The first
// error cancels the remaining work and fails the build.
func (s *Seeder) embedAll(ctx context.Context, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i := range chunks {
		g.Go(func() error {
			if s.Limiter != nil {
				if err := s.Limiter.Wait(gctx); err != nil {
					return err
				}
			}
			vec, err := s.Client.Embed(gctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embed %s: %w", chunks[i].ID, err)
			}
			chunks[i].Embedding = vec
			log.Debug().Str("chunk", chunks[i].ID).Int("dim", len(vec)).Msg("embedded")
			return nil
		})
	}
	return g.Wait()
}
