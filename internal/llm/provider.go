// Package llm abstracts the language model behind a small provider interface
// so components depend on completions and embeddings, not on a vendor SDK.
package llm

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"channelflow-backend/internal/config"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	IsAvailable() bool
}

// CompletionOptions configures LLM completion requests
type CompletionOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// NewProvider builds the configured provider wrapped in a circuit breaker.
func NewProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "mock":
		return NewMockProvider(), nil
	case "genai":
		p, err := NewGenAIProvider(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewBreakerProvider(p, logger), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}

// Cosine returns the cosine similarity of two vectors. Mismatched or empty
// vectors score zero rather than erroring; callers treat that as no match.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
