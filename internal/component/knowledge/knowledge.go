// Package knowledge answers questions against a Bedrock knowledge base.
package knowledge

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/config"
	appErrors "channelflow-backend/pkg/errors"
)

// Type is the node type flow documents use for this component.
const Type = "BedrockKnowledgeComponent"

// maxSourceChars caps how much retrieved text is surfaced per source.
const maxSourceChars = 250

const generationMaxTokens = 2048

// Client is the slice of the Bedrock agent runtime API this package uses.
type Client interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// Component runs one retrieve-and-generate call per invocation and exposes
// the generated answer together with its cited sources.
type Component struct {
	client Client
	cfg    config.BedrockConfig
	logger *zap.Logger
}

// New creates the component with config-backed defaults.
func New(client Client, cfg config.BedrockConfig, logger *zap.Logger) *Component {
	return &Component{client: client, cfg: cfg, logger: logger}
}

// Spec implements component.Component.
func (c *Component) Spec() component.Spec {
	return component.Spec{
		Type:        Type,
		DisplayName: "Bedrock Knowledge Base",
		Description: "Queries a Bedrock knowledge base and generates a grounded answer.",
		Inputs: []component.PortSpec{
			{Name: "question", Required: true, Description: "The question to ask the knowledge base."},
			{Name: "knowledge_base_id", Description: "Knowledge base to query. Defaults to the configured one."},
			{Name: "model_arn", Description: "Generation model ARN. Defaults to the configured one."},
			{Name: "max_results", Description: "How many passages to retrieve."},
			{Name: "temperature", Description: "Generation temperature."},
		},
		Outputs: []component.PortSpec{
			{Name: "answer", Description: "The generated answer text."},
			{Name: "sources", Description: "Cited passages with content, location and metadata."},
		},
	}
}

// Run implements component.Component.
func (c *Component) Run(ctx context.Context, in component.Inputs) (component.Outputs, error) {
	question := in.String("question", "")
	if question == "" {
		return nil, appErrors.NewValidation("question must not be empty")
	}
	kbID := in.String("knowledge_base_id", c.cfg.KnowledgeBaseID)
	if kbID == "" {
		return nil, appErrors.NewValidation("knowledge base id is not configured")
	}
	modelARN := in.String("model_arn", c.cfg.ModelARN)
	if modelARN == "" {
		return nil, appErrors.NewValidation("model arn is not configured")
	}
	maxResults := in.Int("max_results", c.cfg.MaxResults)
	if maxResults <= 0 {
		maxResults = 5
	}
	temperature := in.Float("temperature", c.cfg.Temperature)

	out, err := c.client.RetrieveAndGenerate(ctx, &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &types.RetrieveAndGenerateInput{Text: aws.String(question)},
		RetrieveAndGenerateConfiguration: &types.RetrieveAndGenerateConfiguration{
			Type: types.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: &types.KnowledgeBaseRetrieveAndGenerateConfiguration{
				KnowledgeBaseId: aws.String(kbID),
				ModelArn:        aws.String(modelARN),
				RetrievalConfiguration: &types.KnowledgeBaseRetrievalConfiguration{
					VectorSearchConfiguration: &types.KnowledgeBaseVectorSearchConfiguration{
						NumberOfResults: aws.Int32(int32(maxResults)),
					},
				},
				GenerationConfiguration: &types.GenerationConfiguration{
					InferenceConfig: &types.InferenceConfig{
						TextInferenceConfig: &types.TextInferenceConfig{
							Temperature:   aws.Float32(float32(temperature)),
							MaxTokens:     aws.Int32(generationMaxTokens),
							StopSequences: []string{"\nObservation"},
						},
					},
				},
			},
		},
	})
	if err != nil {
		c.logger.Error("knowledge base query failed",
			zap.String("knowledge_base_id", kbID),
			zap.Error(err))
		return nil, appErrors.NewUnavailable("knowledge base query failed", err)
	}

	answer := "No answer found."
	if out.Output != nil && aws.ToString(out.Output.Text) != "" {
		answer = aws.ToString(out.Output.Text)
	}

	sources := make([]map[string]any, 0)
	for _, citation := range out.Citations {
		for _, ref := range citation.RetrievedReferences {
			sources = append(sources, sourceInfo(ref))
		}
	}

	c.logger.Debug("knowledge base answered",
		zap.String("knowledge_base_id", kbID),
		zap.Int("sources", len(sources)))
	return component.Outputs{"answer": answer, "sources": sources}, nil
}

func sourceInfo(ref types.RetrievedReference) map[string]any {
	src := map[string]any{
		"content":  "",
		"location": locationMap(ref.Location),
	}
	if ref.Content != nil {
		src["content"] = truncate(aws.ToString(ref.Content.Text), maxSourceChars)
	}
	if meta := metadataMap(ref.Metadata); len(meta) > 0 {
		src["metadata"] = meta
	}
	return src
}

func locationMap(loc *types.RetrievalResultLocation) map[string]any {
	out := map[string]any{}
	if loc == nil {
		return out
	}
	out["type"] = string(loc.Type)
	if loc.S3Location != nil {
		out["uri"] = aws.ToString(loc.S3Location.Uri)
	}
	if loc.WebLocation != nil {
		out["url"] = aws.ToString(loc.WebLocation.Url)
	}
	return out
}

func metadataMap(meta map[string]document.Interface) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, doc := range meta {
		var v any
		if err := doc.UnmarshalSmithyDocument(&v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
