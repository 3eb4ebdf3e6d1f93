// Package retrieval answers tax questions from the embedded knowledge
// store: embed the question, rank stored chunks by cosine similarity, and
// generate an answer grounded in the retrieved context.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/koretax/taxchat/internal/ai"
	"github.com/koretax/taxchat/internal/store"
	"github.com/koretax/taxchat/pkg/models"
)

const (
	// DefaultTopK bounds how many chunks feed the generation prompt.
	DefaultTopK = 3
	// DefaultFloor excludes chunks at or below this cosine similarity,
	// even when fewer than topK candidates remain.
	DefaultFloor = 0.1

	chunkSeparator = "\n\n---\n\n"
)

// Service wires an AI client to a chunk store.
type Service struct {
	Client ai.Client
	Store  store.ChunkStore
	TopK   int
	Floor  float64
}

// NewService creates a retrieval service with the given client and store.
func NewService(client ai.Client, st store.ChunkStore, topK int, floor float64) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{Client: client, Store: st, TopK: topK, Floor: floor}
}

// AnswerOptions shape a single answer request.
type AnswerOptions struct {
	Language Language
	// Context optionally describes the caller's situation, e.g. which
	// wizard page the user is on.
	Context string
}

// Source identifies a cited document.
type Source struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Response is a generated answer plus its citations.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Retrieve embeds the query and returns the chunks ranked above the
// similarity floor, at most topK of them. Failures inside retrieval never
// escape: an unusable store or a failed embedding logs a warning and
// yields an empty result.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) []models.ScoredChunk {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if topK <= 0 {
		topK = s.TopK
	}

	vec, err := s.Client.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("query embedding failed, returning no candidates")
		return nil
	}

	res, err := s.Store.Search(ctx, vec, topK, s.Floor)
	if err != nil {
		log.Warn().Err(err).Msg("store search failed, returning no candidates")
		return nil
	}
	return res
}

// Answer generates a grounded answer from the given chunks. With no
// chunks it returns the fixed "no information" message without calling
// the generation service. A generation failure returns a fixed apology;
// the caller always gets usable text.
func (s *Service) Answer(ctx context.Context, query string, chunks []models.ScoredChunk, opts AnswerOptions) string {
	if len(chunks) == 0 {
		return NoInfoMessage(opts.Language)
	}

	system := buildSystemPrompt(opts)
	user := buildUserPrompt(query, chunks)

	answer, err := s.Client.Generate(ctx, system, user, ai.GenerateOptions{
		Temperature: ai.DefaultTemperature,
		MaxTokens:   ai.DefaultMaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
		return ApologyMessage(opts.Language)
	}
	return answer
}

// Ask runs retrieval and answering for one question.
func (s *Service) Ask(ctx context.Context, query string, opts AnswerOptions) Response {
	chunks := s.Retrieve(ctx, query, s.TopK)

	sources := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, Source{Name: c.Chunk.Source, Similarity: c.Similarity})
	}

	return Response{
		Answer:  s.Answer(ctx, query, chunks, opts),
		Sources: sources,
	}
}

func buildSystemPrompt(opts AnswerOptions) string {
	var b strings.Builder
	switch opts.Language {
	case LangEnglish:
		b.WriteString("You are a U.S. tax-law expert assisting users of a tax-filing service. ")
		b.WriteString("Answer using only the reference material provided in the user message. ")
		b.WriteString("If a figure or rule is not clearly supported by the material, say it may be inaccurate and recommend verifying with the IRS. ")
		b.WriteString("Answer in English.")
	default:
		b.WriteString("당신은 세금 신고 서비스 사용자를 돕는 미국 세법 전문가입니다. ")
		b.WriteString("반드시 사용자 메시지에 제공된 참고 자료만을 근거로 답변하세요. ")
		b.WriteString("자료에서 확실하지 않은 금액이나 규정은 부정확할 수 있음을 밝히고 IRS 확인을 권장하세요. ")
		b.WriteString("한국어로 답변하세요.")
	}
	if ctx := strings.TrimSpace(opts.Context); ctx != "" {
		b.WriteString("\n\nCurrent situation: ")
		b.WriteString(ctx)
	}
	return b.String()
}

func buildUserPrompt(query string, chunks []models.ScoredChunk) string {
	parts := make([]string, 0, len(chunks)+1)
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("[출처/source: %s]\n%s", c.Chunk.Source, c.Chunk.Content))
	}
	parts = append(parts, "질문/Question: "+query)
	return strings.Join(parts, chunkSeparator)
}
