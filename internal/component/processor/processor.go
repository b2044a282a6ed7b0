// Package processor implements the triage component that decides whether an
// incoming channel message opens a new tracked item or updates an existing
// one, using embedding similarity plus LLM status classification.
package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/config"
	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/llm"
	appErrors "channelflow-backend/pkg/errors"
)

// Type is the component type name flow documents reference.
const Type = "MessageProcessorComponent"

// Embedding requests are chunked so long item lists fan out across calls.
const embedBatchSize = 16

// Component triages an incoming message against a channel's existing items.
type Component struct {
	provider            llm.Provider
	similarityThreshold float64
	maxConcurrentEmbeds int
	logger              *zap.Logger
	now                 func() time.Time
}

// New creates the processor component from the LLM configuration.
func New(provider llm.Provider, cfg config.LLMConfig, logger *zap.Logger) *Component {
	return &Component{
		provider:            provider,
		similarityThreshold: cfg.SimilarityThreshold,
		maxConcurrentEmbeds: cfg.MaxConcurrentEmbeds,
		logger:              logger,
		now:                 time.Now,
	}
}

// Spec implements component.Component.
func (c *Component) Spec() component.Spec {
	return component.Spec{
		Type:        Type,
		DisplayName: "Message Processor",
		Description: "Determines whether a message opens a new tracked item or updates an existing one.",
		Inputs: []component.PortSpec{
			{Name: "message", Required: true, Description: "The incoming channel message."},
			{Name: "category", Required: true, Description: "Tracker category: BUGS, BLOCKED or TASKS."},
			{Name: "channel_id", Required: true, Description: "Source channel id."},
			{Name: "existing_items", Description: "Items already tracked for this channel and category."},
		},
		Outputs: []component.PortSpec{
			{Name: "result", Description: "The new item, or the update record for a matched item."},
			{Name: "is_update", Description: "True when result refers to an already tracked item."},
		},
	}
}

// Run implements component.Component.
func (c *Component) Run(ctx context.Context, in component.Inputs) (component.Outputs, error) {
	message := in.String("message", "")
	if message == "" {
		return nil, appErrors.NewValidation("message must not be empty")
	}
	category, err := domain.ParseCategory(in.String("category", ""))
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	channelID := in.String("channel_id", "")
	if channelID == "" {
		return nil, appErrors.NewValidation("channel_id must not be empty")
	}

	rawItems := in.Items("existing_items")
	existing := make([]domain.Item, 0, len(rawItems))
	for _, m := range rawItems {
		existing = append(existing, domain.ItemFromMap(m))
	}

	match, score, err := c.findSimilar(ctx, message, existing)
	if err != nil {
		return nil, err
	}

	status, err := c.classify(ctx, message)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if match == nil {
		item := domain.NewItem(category, message, status, now)
		c.logger.Info("tracking new item",
			zap.String("channel_id", channelID),
			zap.String("category", string(category)),
			zap.String("item_id", item.ID),
			zap.Int("status", int(status)))
		return component.Outputs{"result": item.Map(), "is_update": false}, nil
	}

	// A similar item is already tracked. Emit an update record, never a
	// second row; an unchanged status still refreshes updated_timestamp.
	update := map[string]any{
		"id":                match.ID,
		"status":            int(status),
		"updated_timestamp": domain.Timestamp(now),
	}
	if status == match.Status {
		c.logger.Debug("similar item already tracked",
			zap.String("channel_id", channelID),
			zap.String("item_id", match.ID),
			zap.Float64("similarity", score))
	} else {
		c.logger.Info("updating tracked item",
			zap.String("channel_id", channelID),
			zap.String("item_id", match.ID),
			zap.Int("status", int(status)),
			zap.Float64("similarity", score))
	}
	return component.Outputs{"result": update, "is_update": true}, nil
}

// findSimilar embeds the message alongside every existing item message and
// returns the best match at or above the similarity threshold.
func (c *Component) findSimilar(ctx context.Context, message string, existing []domain.Item) (*domain.Item, float64, error) {
	candidates := make([]int, 0, len(existing))
	texts := []string{message}
	for i, it := range existing {
		if it.Message == "" {
			continue
		}
		candidates = append(candidates, i)
		texts = append(texts, it.Message)
	}
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	vecs := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrentEmbeds)
	for start := 0; start < len(texts); start += embedBatchSize {
		start := start
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			got, err := c.provider.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vecs[start:end], got)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, appErrors.Wrap(err, "failed to embed messages")
	}

	bestIdx := -1
	bestScore := 0.0
	for k, idx := range candidates {
		score := llm.Cosine(vecs[0], vecs[k+1])
		if score >= c.similarityThreshold && score > bestScore {
			bestIdx = idx
			bestScore = score
		}
	}
	if bestIdx < 0 {
		return nil, 0, nil
	}
	item := existing[bestIdx]
	return &item, bestScore, nil
}

func (c *Component) classify(ctx context.Context, message string) (domain.Status, error) {
	prompt := fmt.Sprintf(
		"Determine the status of this message (0 for new, 1 for in progress, 2 for resolved). Return only the digit.\n\nMessage: %s",
		message)

	reply, err := c.provider.Complete(ctx, prompt, llm.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		return 0, appErrors.Wrap(err, "status classification failed")
	}
	return domain.ParseStatus(reply), nil
}
