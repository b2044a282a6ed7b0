package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"channelflow-backend/internal/config"
	appErrors "channelflow-backend/pkg/errors"
)

// GenAIProvider implements Provider on the Gemini API.
type GenAIProvider struct {
	client          *genai.Client
	completionModel string
	embeddingModel  string
	logger          *zap.Logger
}

// NewGenAIProvider creates a provider backed by the Gemini API.
func NewGenAIProvider(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GenAIProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to create genai client")
	}

	return &GenAIProvider{
		client:          client,
		completionModel: cfg.CompletionModel,
		embeddingModel:  cfg.EmbeddingModel,
		logger:          logger,
	}, nil
}

// IsAvailable returns whether the provider has a usable client.
func (p *GenAIProvider) IsAvailable() bool {
	return p.client != nil
}

// Complete sends a single-turn prompt and returns the trimmed reply text.
func (p *GenAIProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	genCfg := &genai.GenerateContentConfig{}
	if options.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(options.Temperature))
	}
	if options.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(options.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.completionModel, genai.Text(prompt), genCfg)
	if err != nil {
		return "", appErrors.NewUnavailable("completion request failed", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", appErrors.NewInternal("completion returned no text", nil)
	}

	p.logger.Debug("completion finished",
		zap.String("model", p.completionModel),
		zap.Int("reply_len", len(text)))
	return text, nil
}

// Embed returns one embedding per input text, in input order.
func (p *GenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	result, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, appErrors.NewUnavailable("embedding request failed", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, appErrors.NewInternal(
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)), nil)
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
