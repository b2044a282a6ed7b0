package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/config"
	appErrors "channelflow-backend/pkg/errors"
)

type stubClient struct {
	fn    func(*bedrockagentruntime.RetrieveAndGenerateInput) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
	calls int
}

func (s *stubClient) RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	s.calls++
	if s.fn != nil {
		return s.fn(params)
	}
	return &bedrockagentruntime.RetrieveAndGenerateOutput{}, nil
}

func testConfig() config.BedrockConfig {
	return config.BedrockConfig{
		KnowledgeBaseID: "KB123",
		ModelARN:        "arn:aws:bedrock:us-west-2::foundation-model/anthropic.claude-3-5-sonnet-20240620-v1:0",
		MaxResults:      5,
		Temperature:     0.2,
	}
}

func TestKnowledgeRun(t *testing.T) {
	longText := strings.Repeat("a", 300)

	t.Run("answers with truncated sources", func(t *testing.T) {
		var captured *bedrockagentruntime.RetrieveAndGenerateInput
		stub := &stubClient{
			fn: func(input *bedrockagentruntime.RetrieveAndGenerateInput) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
				captured = input
				return &bedrockagentruntime.RetrieveAndGenerateOutput{
					Output: &types.RetrieveAndGenerateOutput{Text: aws.String("Deploys are gated on the release checklist.")},
					Citations: []types.Citation{
						{RetrievedReferences: []types.RetrievedReference{
							{
								Content: &types.RetrievalResultContent{Text: aws.String(longText)},
								Location: &types.RetrievalResultLocation{
									Type:       types.RetrievalResultLocationTypeS3,
									S3Location: &types.RetrievalResultS3Location{Uri: aws.String("s3://kb/runbook.md")},
								},
							},
							{Content: &types.RetrievalResultContent{Text: aws.String("short passage")}},
						}},
					},
				}, nil
			},
		}
		comp := New(stub, testConfig(), zap.NewNop())

		out, err := comp.Run(context.Background(), component.Inputs{"question": "how do we deploy?"})
		require.NoError(t, err)
		assert.Equal(t, 1, stub.calls)
		assert.Equal(t, "Deploys are gated on the release checklist.", out["answer"])

		sources, ok := out["sources"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, sources, 2)
		assert.Equal(t, strings.Repeat("a", 250)+"...", sources[0]["content"])
		assert.Equal(t, map[string]any{"type": "S3", "uri": "s3://kb/runbook.md"}, sources[0]["location"])
		assert.Equal(t, "short passage", sources[1]["content"])

		require.NotNil(t, captured)
		assert.Equal(t, "how do we deploy?", aws.ToString(captured.Input.Text))
		kb := captured.RetrieveAndGenerateConfiguration.KnowledgeBaseConfiguration
		assert.Equal(t, "KB123", aws.ToString(kb.KnowledgeBaseId))
		assert.Equal(t, int32(5), aws.ToInt32(kb.RetrievalConfiguration.VectorSearchConfiguration.NumberOfResults))
		tic := kb.GenerationConfiguration.InferenceConfig.TextInferenceConfig
		assert.InDelta(t, 0.2, float64(aws.ToFloat32(tic.Temperature)), 0.0001)
		assert.Equal(t, int32(generationMaxTokens), aws.ToInt32(tic.MaxTokens))
	})

	t.Run("inputs override config defaults", func(t *testing.T) {
		var captured *bedrockagentruntime.RetrieveAndGenerateInput
		stub := &stubClient{
			fn: func(input *bedrockagentruntime.RetrieveAndGenerateInput) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
				captured = input
				return &bedrockagentruntime.RetrieveAndGenerateOutput{}, nil
			},
		}
		comp := New(stub, testConfig(), zap.NewNop())

		_, err := comp.Run(context.Background(), component.Inputs{
			"question":          "what broke?",
			"knowledge_base_id": "KB999",
			"max_results":       2,
			"temperature":       0.7,
		})
		require.NoError(t, err)
		kb := captured.RetrieveAndGenerateConfiguration.KnowledgeBaseConfiguration
		assert.Equal(t, "KB999", aws.ToString(kb.KnowledgeBaseId))
		assert.Equal(t, int32(2), aws.ToInt32(kb.RetrievalConfiguration.VectorSearchConfiguration.NumberOfResults))
		tic := kb.GenerationConfiguration.InferenceConfig.TextInferenceConfig
		assert.InDelta(t, 0.7, float64(aws.ToFloat32(tic.Temperature)), 0.0001)
	})

	t.Run("empty response falls back", func(t *testing.T) {
		comp := New(&stubClient{}, testConfig(), zap.NewNop())

		out, err := comp.Run(context.Background(), component.Inputs{"question": "anything?"})
		require.NoError(t, err)
		assert.Equal(t, "No answer found.", out["answer"])
		assert.Empty(t, out["sources"])
	})

	t.Run("api failure is unavailable", func(t *testing.T) {
		stub := &stubClient{
			fn: func(*bedrockagentruntime.RetrieveAndGenerateInput) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
				return nil, assert.AnError
			},
		}
		comp := New(stub, testConfig(), zap.NewNop())

		_, err := comp.Run(context.Background(), component.Inputs{"question": "anything?"})
		assert.True(t, appErrors.IsUnavailable(err))
	})

	t.Run("validation", func(t *testing.T) {
		comp := New(&stubClient{}, config.BedrockConfig{}, zap.NewNop())

		_, err := comp.Run(context.Background(), component.Inputs{})
		assert.True(t, appErrors.IsValidation(err))

		_, err = comp.Run(context.Background(), component.Inputs{"question": "q"})
		assert.True(t, appErrors.IsValidation(err), "missing knowledge base id")
	})
}

func TestKnowledgeSpec(t *testing.T) {
	comp := New(&stubClient{}, testConfig(), zap.NewNop())
	spec := comp.Spec()

	assert.Equal(t, Type, spec.Type)
	assert.True(t, spec.HasInput("question"))
	assert.True(t, spec.HasOutput("answer"))
	assert.True(t, spec.HasOutput("sources"))
	assert.Equal(t, []string{"question"}, spec.RequiredInputs())
}
