package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Client provides embedding and answer-generation capabilities.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, system, user string, opts GenerateOptions) (string, error)
	Dim() int
}

// GenerateOptions bound a generation request. Zero values fall back to
// the defaults (temperature 0.1, 1000 output tokens).
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1000
)

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Location   string
	Provider   Provider
}

// NewClient creates a new AI client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config)
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// StubClient is a deterministic offline implementation of Client, used in
// tests and local runs without provider credentials.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 8
	}
	return &StubClient{dim: dim}
}

// Embed folds the text's bytes into dim buckets and normalizes, so equal
// texts get equal vectors and similar texts score high.
func (s *StubClient) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, s.dim)
	for i, b := range []byte(text) {
		v[(i+int(b))%s.dim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v, nil
}

// Generate echoes a truncated view of the user prompt.
func (s *StubClient) Generate(_ context.Context, _, user string, opts GenerateOptions) (string, error) {
	opts = opts.withDefaults()
	out := user
	if len(out) > opts.MaxTokens {
		out = out[:opts.MaxTokens]
	}
	return "(stub) " + strings.TrimSpace(out), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
