// Package dynamo exposes channel table operations as a flow component.
package dynamo

import (
	"context"

	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/domain"
	"channelflow-backend/internal/repository"
	appErrors "channelflow-backend/pkg/errors"
)

// Type is the node type flow documents use for this component.
const Type = "DynamoDBComponent"

// Operations the component accepts.
const (
	OpGetItems      = "get_items"
	OpUpdateItem    = "update_item"
	OpAppendMessage = "append_message"
)

// Component reads and writes channel items. The repository owns the SDK
// calls; this layer does input binding and shapes the result payload.
type Component struct {
	repo   repository.ChannelRepository
	logger *zap.Logger
}

// New creates the component over a channel repository.
func New(repo repository.ChannelRepository, logger *zap.Logger) *Component {
	return &Component{repo: repo, logger: logger}
}

// Spec implements component.Component.
func (c *Component) Spec() component.Spec {
	return component.Spec{
		Type:        Type,
		DisplayName: "DynamoDB",
		Description: "Reads and writes tracked items in the channel tables.",
		Inputs: []component.PortSpec{
			{Name: "operation", Description: "get_items, update_item or append_message. Defaults to append_message."},
			{Name: "table_name", Required: true, Description: "Category table to operate on."},
			{Name: "channel_id", Required: true, Description: "Channel whose row is read or written."},
			{Name: "region_name", Description: "Optional per-call AWS region override."},
			{Name: "new_item", Description: "Item payload for append_message, usually edge-bound from the processor."},
			{Name: "item_id", Description: "Target item id for update_item."},
			{Name: "updates", Description: "Fields to merge for update_item."},
		},
		Outputs: []component.PortSpec{
			{Name: "result", Description: "Items for get_items; the updated channel row otherwise."},
		},
	}
}

// Run implements component.Component.
func (c *Component) Run(ctx context.Context, in component.Inputs) (component.Outputs, error) {
	table := in.String("table_name", "")
	if table == "" {
		return nil, appErrors.NewValidation("table_name must not be empty")
	}
	channelID := in.String("channel_id", "")
	if channelID == "" {
		return nil, appErrors.NewValidation("channel_id must not be empty")
	}

	repo := c.repo
	if region := in.String("region_name", ""); region != "" {
		repo = repo.WithRegion(region)
	}

	operation := in.String("operation", OpAppendMessage)
	switch operation {
	case OpGetItems:
		items, err := repo.GetItems(ctx, table, channelID)
		if err != nil {
			return nil, err
		}
		return component.Outputs{"result": map[string]any{"items": itemMaps(items)}}, nil

	case OpAppendMessage:
		newItem := in.Map("new_item")
		if len(newItem) == 0 {
			return nil, appErrors.NewValidation("new_item is required for append_message")
		}
		return c.appendMessage(ctx, repo, table, channelID, newItem)

	case OpUpdateItem:
		itemID := in.String("item_id", "")
		updates := in.Map("updates")
		if itemID == "" || len(updates) == 0 {
			return nil, appErrors.NewValidation("item_id and updates are required for update_item")
		}
		ch, err := repo.UpdateItem(ctx, table, channelID, itemID, updates)
		if err != nil {
			return nil, err
		}
		return rowResult(ch), nil

	default:
		return nil, appErrors.NewValidationf("unsupported operation: %s", operation)
	}
}

// appendMessage writes the processor's result. A payload without a message
// is an update record for an already tracked item, so it is routed to an
// in-place update of that item rather than appended as a second row.
func (c *Component) appendMessage(ctx context.Context, repo repository.ChannelRepository, table, channelID string, newItem map[string]any) (component.Outputs, error) {
	id, _ := newItem["id"].(string)
	if id == "" {
		return nil, appErrors.NewValidation("new_item must carry an id")
	}

	if _, hasMessage := newItem["message"]; !hasMessage {
		updates := make(map[string]any, len(newItem)-1)
		for k, v := range newItem {
			if k != "id" {
				updates[k] = v
			}
		}
		c.logger.Debug("routing update-shaped item to update_item",
			zap.String("table", table),
			zap.String("item_id", id))
		ch, err := repo.UpdateItem(ctx, table, channelID, id, updates)
		if err != nil {
			return nil, err
		}
		return rowResult(ch), nil
	}

	ch, err := repo.AppendItem(ctx, table, channelID, domain.ItemFromMap(newItem))
	if err != nil {
		return nil, err
	}
	c.logger.Info("appended tracked item",
		zap.String("table", table),
		zap.String("channel_id", channelID),
		zap.String("item_id", id))
	return rowResult(ch), nil
}

func itemMaps(items []domain.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Map())
	}
	return out
}

func rowResult(ch *domain.Channel) component.Outputs {
	return component.Outputs{"result": map[string]any{
		"channel_id": ch.ChannelID,
		"items":      itemMaps(ch.Items),
	}}
}
