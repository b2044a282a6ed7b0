package eventbridge

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channelflow-backend/internal/domain"
)

type stubClient struct {
	fn     func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error)
	inputs []*eventbridge.PutEventsInput
}

func (s *stubClient) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	s.inputs = append(s.inputs, params)
	if s.fn != nil {
		return s.fn(params)
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func sampleEvent(id string) domain.ItemEvent {
	return domain.ItemEvent{
		EventType: domain.EventItemAppended,
		ChannelID: "C123",
		Category:  domain.CategoryBugs,
		Item:      map[string]any{"id": id, "message": "login broken"},
		RunID:     "01HZXW2N9GQ4W7V0T3S5R8K2M1",
	}
}

func TestPublish(t *testing.T) {
	stub := &stubClient{}
	pub := NewPublisher(stub, "channelflow-events", zap.NewNop())

	require.NoError(t, pub.Publish(context.Background(), sampleEvent("bugs_1")))
	require.Len(t, stub.inputs, 1)
	require.Len(t, stub.inputs[0].Entries, 1)

	entry := stub.inputs[0].Entries[0]
	assert.Equal(t, "channelflow-events", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, domain.EventItemAppended, aws.ToString(entry.DetailType))
	assert.Contains(t, aws.ToString(entry.Detail), `"channel_id":"C123"`)
	assert.Contains(t, aws.ToString(entry.Detail), `"run_id"`)
}

func TestPublishBatchChunks(t *testing.T) {
	stub := &stubClient{}
	pub := NewPublisher(stub, "channelflow-events", zap.NewNop())

	events := make([]domain.ItemEvent, 23)
	for i := range events {
		events[i] = sampleEvent("bugs_x")
	}
	require.NoError(t, pub.PublishBatch(context.Background(), events))

	require.Len(t, stub.inputs, 3)
	assert.Len(t, stub.inputs[0].Entries, 10)
	assert.Len(t, stub.inputs[1].Entries, 10)
	assert.Len(t, stub.inputs[2].Entries, 3)
}

func TestPublishFailedEntries(t *testing.T) {
	stub := &stubClient{
		fn: func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
			return &eventbridge.PutEventsOutput{
				FailedEntryCount: 1,
				Entries: []types.PutEventsResultEntry{
					{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("slow down")},
				},
			}, nil
		},
	}
	pub := NewPublisher(stub, "channelflow-events", zap.NewNop())

	err := pub.Publish(context.Background(), sampleEvent("bugs_1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 events failed")
}

func TestPublishTransportError(t *testing.T) {
	stub := &stubClient{
		fn: func(*eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
			return nil, assert.AnError
		},
	}
	pub := NewPublisher(stub, "channelflow-events", zap.NewNop())

	assert.Error(t, pub.Publish(context.Background(), sampleEvent("bugs_1")))
}

func TestPublishBatchEmpty(t *testing.T) {
	stub := &stubClient{}
	pub := NewPublisher(stub, "channelflow-events", zap.NewNop())

	require.NoError(t, pub.PublishBatch(context.Background(), nil))
	assert.Empty(t, stub.inputs)
}
