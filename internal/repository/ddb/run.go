package ddb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"channelflow-backend/internal/domain"
	appErrors "channelflow-backend/pkg/errors"
)

// ddbRun is one row in the run history table, keyed flow_id / run_id. Run
// ids are ULIDs, so the sort key orders runs by creation time. Outputs are
// stored as a JSON blob; nobody queries inside them.
type ddbRun struct {
	FlowID     string `dynamodbav:"flow_id"`
	RunID      string `dynamodbav:"run_id"`
	Status     string `dynamodbav:"status"`
	StartedAt  string `dynamodbav:"started_at"`
	FinishedAt string `dynamodbav:"finished_at"`
	DurationMS int64  `dynamodbav:"duration_ms"`
	Outputs    string `dynamodbav:"outputs,omitempty"`
	Error      string `dynamodbav:"error,omitempty"`
	TTL        int64  `dynamodbav:"ttl,omitempty"`
}

// RunRepository implements repository.RunRepository on DynamoDB.
type RunRepository struct {
	client Client
	table  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRunRepository creates a run repository over the given table. A zero ttl
// disables row expiry.
func NewRunRepository(client Client, table string, ttl time.Duration, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		client: client,
		table:  table,
		ttl:    ttl,
		logger: logger,
	}
}

// SaveRun implements repository.RunRepository.
func (r *RunRepository) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	if record.FlowID == "" || record.RunID == "" {
		return appErrors.NewValidation("run record needs flow id and run id")
	}

	row := ddbRun{
		FlowID:     record.FlowID,
		RunID:      record.RunID,
		Status:     record.Status,
		StartedAt:  domain.Timestamp(record.StartedAt),
		FinishedAt: domain.Timestamp(record.FinishedAt),
		DurationMS: record.DurationMS,
		Error:      record.Error,
	}
	if record.Outputs != nil {
		blob, err := json.Marshal(record.Outputs)
		if err != nil {
			return appErrors.Wrap(err, "failed to serialize run outputs")
		}
		row.Outputs = string(blob)
	}
	if r.ttl > 0 {
		row.TTL = record.FinishedAt.Add(r.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(row)
	if err != nil {
		return appErrors.Wrap(err, "failed to marshal run record")
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	}); err != nil {
		return mapError(err, "failed to save run record")
	}

	r.logger.Debug("saved run record",
		zap.String("flow_id", record.FlowID),
		zap.String("run_id", record.RunID),
		zap.String("status", record.Status))
	return nil
}

// GetRun implements repository.RunRepository.
func (r *RunRepository) GetRun(ctx context.Context, flowID, runID string) (*domain.RunRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"flow_id": &types.AttributeValueMemberS{Value: flowID},
			"run_id":  &types.AttributeValueMemberS{Value: runID},
		},
	})
	if err != nil {
		return nil, mapError(err, "failed to get run record")
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFound(fmt.Sprintf("run %s not found for flow %s", runID, flowID))
	}

	var row ddbRun
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal run record")
	}
	return fromDDBRun(row)
}

// ListRuns implements repository.RunRepository.
func (r *RunRepository) ListRuns(ctx context.Context, flowID string, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	keyCond := expression.Key("flow_id").Equal(expression.Value(flowID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build run query")
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(limit)),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, mapError(err, "failed to list run records")
	}

	records := make([]domain.RunRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var row ddbRun
		if err := attributevalue.UnmarshalMap(item, &row); err != nil {
			return nil, appErrors.Wrap(err, "failed to unmarshal run record")
		}
		rec, err := fromDDBRun(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Ping implements repository.RunRepository.
func (r *RunRepository) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.table),
	})
	return mapError(err, "runs table unreachable")
}

func fromDDBRun(row ddbRun) (*domain.RunRecord, error) {
	rec := &domain.RunRecord{
		FlowID:     row.FlowID,
		RunID:      row.RunID,
		Status:     row.Status,
		DurationMS: row.DurationMS,
		Error:      row.Error,
		ExpiresAt:  row.TTL,
	}
	if row.StartedAt != "" {
		t, err := time.Parse(time.RFC3339, row.StartedAt)
		if err != nil {
			return nil, appErrors.Wrap(err, "bad started_at in run record")
		}
		rec.StartedAt = t
	}
	if row.FinishedAt != "" {
		t, err := time.Parse(time.RFC3339, row.FinishedAt)
		if err != nil {
			return nil, appErrors.Wrap(err, "bad finished_at in run record")
		}
		rec.FinishedAt = t
	}
	if row.Outputs != "" {
		if err := json.Unmarshal([]byte(row.Outputs), &rec.Outputs); err != nil {
			return nil, appErrors.Wrap(err, "bad outputs blob in run record")
		}
	}
	return rec, nil
}
