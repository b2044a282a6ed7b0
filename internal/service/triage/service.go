// Package triage turns channel messages into tracked items by driving the
// built-in flows.
package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/config"
	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/messaging"
	"channelflow-backend/internal/observability"
	"channelflow-backend/internal/repository"
	"channelflow-backend/internal/runner"
	appErrors "channelflow-backend/pkg/errors"
)

// ProcessRequest is one incoming channel message to triage.
type ProcessRequest struct {
	ChannelID string
	Category  string
	Message   string
}

// ProcessResult is the triage outcome in its wire shape.
type ProcessResult struct {
	RunID    string         `json:"run_id"`
	Result   map[string]any `json:"processed_result"`
	IsUpdate bool           `json:"is_update"`
	DBResult map[string]any `json:"db_result"`
}

// KnowledgeAnswer is a knowledge base query outcome in its wire shape.
type KnowledgeAnswer struct {
	RunID   string           `json:"run_id"`
	Answer  string           `json:"answer"`
	Sources []map[string]any `json:"sources"`
}

// Service is the API layer's view of triage and flow operations.
type Service interface {
	ProcessMessage(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	ListItems(ctx context.Context, channelID, category string) ([]domain.Item, error)
	UpdateItem(ctx context.Context, channelID, category, itemID string, updates map[string]any) (*domain.Channel, error)
	Flows() []*flow.Document
	GetFlow(id string) (*flow.Document, error)
	ValidateDocument(doc *flow.Document) error
	RunFlow(ctx context.Context, id string, tweaks map[string]map[string]any) (*runner.Result, error)
	ListRuns(ctx context.Context, flowID string, limit int) ([]domain.RunRecord, error)
	GetRun(ctx context.Context, flowID, runID string) (*domain.RunRecord, error)
	QueryKnowledge(ctx context.Context, question string) (*KnowledgeAnswer, error)
}

type triageService struct {
	tables    config.Tables
	repo      repository.ChannelRepository
	runs      repository.RunRepository
	library   *flow.Library
	runner    *runner.Runner
	resolver  component.Resolver
	publisher messaging.Publisher
	metrics   *observability.Collector
	logger    *zap.Logger
}

// New assembles the triage service. runs and metrics may be nil; publisher
// must not be (use messaging.NoopPublisher to disable events).
func New(
	tables config.Tables,
	repo repository.ChannelRepository,
	runs repository.RunRepository,
	library *flow.Library,
	run *runner.Runner,
	resolver component.Resolver,
	publisher messaging.Publisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) Service {
	return &triageService{
		tables:    tables,
		repo:      repo,
		runs:      runs,
		library:   library,
		runner:    run,
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessMessage implements Service.
func (s *triageService) ProcessMessage(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if req.ChannelID == "" {
		return nil, appErrors.NewValidation("channel_id must not be empty")
	}
	if req.Message == "" {
		return nil, appErrors.NewValidation("message must not be empty")
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	table, err := s.tables.For(string(category))
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}

	existing, err := s.repo.GetItems(ctx, table, req.ChannelID)
	if err != nil {
		return nil, err
	}

	doc, ok := s.library.Get(flow.MessageProcessingFlowID)
	if !ok {
		return nil, appErrors.NewInternal("message processing flow is not loaded", nil)
	}

	res, err := s.runner.Run(ctx, doc, runner.RunOptions{
		Tweaks: map[string]map[string]any{
			flow.ProcessorNodeID: {
				"message":        req.Message,
				"category":       string(category),
				"channel_id":     req.ChannelID,
				"existing_items": itemMaps(existing),
			},
			flow.WriterNodeID: {
				"table_name": table,
				"channel_id": req.ChannelID,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	procOut := res.Nodes[flow.ProcessorNodeID].Outputs
	result, ok := procOut["result"].(map[string]any)
	if !ok {
		return nil, appErrors.NewInternal(fmt.Sprintf("flow %s produced no processed result", doc.ID), nil)
	}
	isUpdate, _ := procOut["is_update"].(bool)
	dbResult, _ := res.Outputs[flow.WriterNodeID]["result"].(map[string]any)

	if s.metrics != nil {
		if isUpdate {
			s.metrics.ItemsUpdated.Inc()
		} else {
			s.metrics.ItemsAppended.Inc()
		}
	}
	s.publishEvent(ctx, req.ChannelID, category, result, isUpdate, res.RunID)

	s.logger.Info("message triaged",
		zap.String("channel_id", req.ChannelID),
		zap.String("category", string(category)),
		zap.Bool("is_update", isUpdate),
		zap.String("run_id", res.RunID))

	return &ProcessResult{
		RunID:    res.RunID,
		Result:   result,
		IsUpdate: isUpdate,
		DBResult: dbResult,
	}, nil
}

// publishEvent delivers the triage outcome to the bus. Failures are logged;
// the triage result has already been persisted.
func (s *triageService) publishEvent(ctx context.Context, channelID string, category domain.Category, item map[string]any, isUpdate bool, runID string) {
	eventType := domain.EventItemAppended
	if isUpdate {
		eventType = domain.EventItemUpdated
	}
	event := domain.ItemEvent{
		EventType: eventType,
		ChannelID: channelID,
		Category:  category,
		Item:      item,
		RunID:     runID,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish item event",
			zap.String("event_type", eventType),
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
}

// ListItems implements Service.
func (s *triageService) ListItems(ctx context.Context, channelID, category string) ([]domain.Item, error) {
	if channelID == "" {
		return nil, appErrors.NewValidation("channel_id must not be empty")
	}
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	table, err := s.tables.For(string(cat))
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	return s.repo.GetItems(ctx, table, channelID)
}

// UpdateItem implements Service.
func (s *triageService) UpdateItem(ctx context.Context, channelID, category, itemID string, updates map[string]any) (*domain.Channel, error) {
	if channelID == "" {
		return nil, appErrors.NewValidation("channel_id must not be empty")
	}
	if itemID == "" {
		return nil, appErrors.NewValidation("item_id must not be empty")
	}
	if len(updates) == 0 {
		return nil, appErrors.NewValidation("updates must not be empty")
	}
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}
	table, err := s.tables.For(string(cat))
	if err != nil {
		return nil, appErrors.NewValidation(err.Error())
	}

	ch, err := s.repo.UpdateItem(ctx, table, channelID, itemID, updates)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ItemsUpdated.Inc()
	}
	return ch, nil
}

// Flows implements Service.
func (s *triageService) Flows() []*flow.Document {
	return s.library.List()
}

// GetFlow implements Service.
func (s *triageService) GetFlow(id string) (*flow.Document, error) {
	doc, ok := s.library.Get(id)
	if !ok {
		return nil, appErrors.NewNotFound(fmt.Sprintf("flow %s not found", id))
	}
	return doc, nil
}

// ValidateDocument implements Service.
func (s *triageService) ValidateDocument(doc *flow.Document) error {
	return doc.Validate(s.resolver)
}

// RunFlow implements Service.
func (s *triageService) RunFlow(ctx context.Context, id string, tweaks map[string]map[string]any) (*runner.Result, error) {
	doc, err := s.GetFlow(id)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, doc, runner.RunOptions{Tweaks: tweaks})
}

// ListRuns implements Service.
func (s *triageService) ListRuns(ctx context.Context, flowID string, limit int) ([]domain.RunRecord, error) {
	if flowID == "" {
		return nil, appErrors.NewValidation("flow_id must not be empty")
	}
	if s.runs == nil {
		return nil, appErrors.NewUnavailable("run history is not configured", nil)
	}
	return s.runs.ListRuns(ctx, flowID, limit)
}

// GetRun implements Service.
func (s *triageService) GetRun(ctx context.Context, flowID, runID string) (*domain.RunRecord, error) {
	if flowID == "" || runID == "" {
		return nil, appErrors.NewValidation("flow_id and run_id must not be empty")
	}
	if s.runs == nil {
		return nil, appErrors.NewUnavailable("run history is not configured", nil)
	}
	return s.runs.GetRun(ctx, flowID, runID)
}

// QueryKnowledge implements Service.
func (s *triageService) QueryKnowledge(ctx context.Context, question string) (*KnowledgeAnswer, error) {
	if question == "" {
		return nil, appErrors.NewValidation("question must not be empty")
	}

	doc, ok := s.library.Get(flow.KnowledgeQueryFlowID)
	if !ok {
		return nil, appErrors.NewInternal("knowledge query flow is not loaded", nil)
	}

	res, err := s.runner.Run(ctx, doc, runner.RunOptions{
		Tweaks: map[string]map[string]any{
			flow.KnowledgeNodeID: {"question": question},
		},
	})
	if err != nil {
		return nil, err
	}

	out := res.Outputs[flow.KnowledgeNodeID]
	answer, ok := out["answer"].(string)
	if !ok {
		return nil, appErrors.NewInternal(fmt.Sprintf("flow %s produced no answer", doc.ID), nil)
	}
	sources, _ := out["sources"].([]map[string]any)

	return &KnowledgeAnswer{
		RunID:   res.RunID,
		Answer:  answer,
		Sources: sources,
	}, nil
}

func itemMaps(items []domain.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Map())
	}
	return out
}
