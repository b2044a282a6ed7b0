package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/repository"
	appErrors "channelflow-backend/pkg/errors"
)

const (
	maxWriteRetries = 3
	baseRetryDelay  = 100 * time.Millisecond
)

// ddbItem mirrors domain.Item with the attribute names the tables use.
type ddbItem struct {
	ID               string `dynamodbav:"id"`
	Message          string `dynamodbav:"message,omitempty"`
	Status           int    `dynamodbav:"status"`
	CreatedTimestamp string `dynamodbav:"created_timestamp,omitempty"`
	UpdatedTimestamp string `dynamodbav:"updated_timestamp,omitempty"`
}

// ddbChannel is one row in a category table, keyed by channel_id. The
// version attribute guards concurrent read-modify-write cycles.
type ddbChannel struct {
	ChannelID string    `dynamodbav:"channel_id"`
	Items     []ddbItem `dynamodbav:"items"`
	Version   int64     `dynamodbav:"version"`
	CreatedAt string    `dynamodbav:"created_at,omitempty"`
	UpdatedAt string    `dynamodbav:"updated_at,omitempty"`
}

func toDDBItems(items []domain.Item) []ddbItem {
	out := make([]ddbItem, 0, len(items))
	for _, it := range items {
		out = append(out, ddbItem{
			ID:               it.ID,
			Message:          it.Message,
			Status:           int(it.Status),
			CreatedTimestamp: it.CreatedTimestamp,
			UpdatedTimestamp: it.UpdatedTimestamp,
		})
	}
	return out
}

func fromDDBItems(items []ddbItem) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		out = append(out, domain.Item{
			ID:               it.ID,
			Message:          it.Message,
			Status:           domain.Status(it.Status),
			CreatedTimestamp: it.CreatedTimestamp,
			UpdatedTimestamp: it.UpdatedTimestamp,
		})
	}
	return out
}

func toChannel(row ddbChannel) domain.Channel {
	return domain.Channel{
		ChannelID: row.ChannelID,
		Items:     fromDDBItems(row.Items),
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// ChannelRepository implements repository.ChannelRepository on DynamoDB.
type ChannelRepository struct {
	client Client
	logger *zap.Logger
	optFns []func(*dynamodb.Options)
	now    func() time.Time
}

// NewChannelRepository creates a repository over the given client.
func NewChannelRepository(client Client, logger *zap.Logger) *ChannelRepository {
	return &ChannelRepository{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// WithRegion implements repository.ChannelRepository.
func (r *ChannelRepository) WithRegion(region string) repository.ChannelRepository {
	if region == "" {
		return r
	}
	clone := *r
	clone.optFns = append(append([]func(*dynamodb.Options){}, r.optFns...), regionOpt(region))
	return &clone
}

func (r *ChannelRepository) key(channelID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"channel_id": &types.AttributeValueMemberS{Value: channelID},
	}
}

// GetItems implements repository.ChannelRepository.
func (r *ChannelRepository) GetItems(ctx context.Context, table, channelID string) ([]domain.Item, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       r.key(channelID),
	}, r.optFns...)
	if err != nil {
		return nil, mapError(err, "failed to get channel items")
	}
	if out.Item == nil {
		return []domain.Item{}, nil
	}

	var row ddbChannel
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal channel row")
	}
	return fromDDBItems(row.Items), nil
}

// EnsureChannel implements repository.ChannelRepository.
func (r *ChannelRepository) EnsureChannel(ctx context.Context, table, channelID string) error {
	now := domain.Timestamp(r.now())
	av, err := attributevalue.MarshalMap(ddbChannel{
		ChannelID: channelID,
		Items:     []ddbItem{},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return appErrors.Wrap(err, "failed to marshal channel row")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(channel_id)"),
	}, r.optFns...)
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return mapError(err, "failed to create channel")
	}

	r.logger.Debug("created channel row",
		zap.String("table", table),
		zap.String("channel_id", channelID))
	return nil
}

// AppendItem implements repository.ChannelRepository.
func (r *ChannelRepository) AppendItem(ctx context.Context, table, channelID string, item domain.Item) (*domain.Channel, error) {
	if item.ID == "" {
		return nil, appErrors.NewValidation("item id must not be empty")
	}

	return r.mutate(ctx, table, channelID, func(ch *domain.Channel) error {
		if ch.FindItem(item.ID) >= 0 {
			return appErrors.NewConflict(fmt.Sprintf("item %s already exists", item.ID))
		}
		ch.Items = append(ch.Items, item)
		return nil
	})
}

// UpdateItem implements repository.ChannelRepository.
func (r *ChannelRepository) UpdateItem(ctx context.Context, table, channelID, itemID string, updates map[string]any) (*domain.Channel, error) {
	if itemID == "" {
		return nil, appErrors.NewValidation("item id must not be empty")
	}

	return r.mutate(ctx, table, channelID, func(ch *domain.Channel) error {
		idx := ch.FindItem(itemID)
		if idx < 0 {
			return appErrors.NewNotFound(fmt.Sprintf("item %s not found in channel %s", itemID, channelID))
		}
		ch.Items[idx].ApplyUpdates(updates, r.now())
		return nil
	})
}

// mutate runs a read-modify-write cycle under optimistic locking, retrying
// version conflicts with exponential backoff.
func (r *ChannelRepository) mutate(ctx context.Context, table, channelID string, fn func(*domain.Channel) error) (*domain.Channel, error) {
	if err := r.EnsureChannel(ctx, table, channelID); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, appErrors.Wrap(ctx.Err(), "cancelled while retrying channel write")
			case <-time.After(delay):
			}
		}

		row, err := r.read(ctx, table, channelID)
		if err != nil {
			return nil, err
		}

		ch := toChannel(row)
		if err := fn(&ch); err != nil {
			return nil, err
		}

		updated, err := r.write(ctx, table, &ch, row.Version)
		if err == nil {
			return updated, nil
		}
		if !appErrors.IsConflict(err) {
			return nil, err
		}

		lastErr = err
		r.logger.Debug("channel version conflict, retrying",
			zap.String("table", table),
			zap.String("channel_id", channelID),
			zap.Int("attempt", attempt+1))
	}

	return nil, appErrors.Wrap(lastErr, fmt.Sprintf("gave up after %d attempts", maxWriteRetries))
}

func (r *ChannelRepository) read(ctx context.Context, table, channelID string) (ddbChannel, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            r.key(channelID),
		ConsistentRead: aws.Bool(true),
	}, r.optFns...)
	if err != nil {
		return ddbChannel{}, mapError(err, "failed to read channel")
	}
	if out.Item == nil {
		// EnsureChannel ran first, so an empty read means the row vanished
		// between calls; start from a fresh row and let the version
		// condition sort out races.
		return ddbChannel{ChannelID: channelID, Items: []ddbItem{}}, nil
	}

	var row ddbChannel
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return ddbChannel{}, appErrors.Wrap(err, "failed to unmarshal channel row")
	}
	return row, nil
}

func (r *ChannelRepository) write(ctx context.Context, table string, ch *domain.Channel, expectedVersion int64) (*domain.Channel, error) {
	update := expression.
		Set(expression.Name("items"), expression.Value(toDDBItems(ch.Items))).
		Set(expression.Name("version"), expression.Value(expectedVersion+1)).
		Set(expression.Name("updated_at"), expression.Value(domain.Timestamp(r.now())))
	cond := expression.Equal(expression.Name("version"), expression.Value(expectedVersion))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build update expression")
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       r.key(ch.ChannelID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}, r.optFns...)
	if err != nil {
		return nil, mapError(err, "failed to write channel items")
	}

	var row ddbChannel
	if err := attributevalue.UnmarshalMap(out.Attributes, &row); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal updated channel row")
	}
	updated := toChannel(row)
	return &updated, nil
}
