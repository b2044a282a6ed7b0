// Package repository defines the persistence ports for channel trackers and
// flow run history. Implementations live in the ddb subpackage; in-memory
// mocks for tests live in mocks.
package repository

import (
	"context"

	"channelflow-backend/internal/domain"
)

// ChannelRepository persists per-channel item lists in the category tables.
type ChannelRepository interface {
	// GetItems returns the channel's tracked items. A channel that has never
	// been written reads as an empty list, not an error.
	GetItems(ctx context.Context, table, channelID string) ([]domain.Item, error)

	// AppendItem adds a new item to the channel's list, creating the channel
	// row first when needed, and returns the updated row.
	AppendItem(ctx context.Context, table, channelID string, item domain.Item) (*domain.Channel, error)

	// UpdateItem merges updates into the item with itemID and returns the
	// updated row. A missing item is a NotFound error.
	UpdateItem(ctx context.Context, table, channelID, itemID string, updates map[string]any) (*domain.Channel, error)

	// EnsureChannel creates the channel row when absent. Idempotent.
	EnsureChannel(ctx context.Context, table, channelID string) error

	// WithRegion returns a view of the repository whose calls run against
	// the given region. An empty region returns the receiver unchanged.
	WithRegion(region string) ChannelRepository
}

// RunRepository persists flow run records keyed by flow id and run id.
type RunRepository interface {
	SaveRun(ctx context.Context, record *domain.RunRecord) error

	// GetRun returns one run record. A missing record is a NotFound error.
	GetRun(ctx context.Context, flowID, runID string) (*domain.RunRecord, error)

	// ListRuns returns up to limit records for a flow, newest first.
	ListRuns(ctx context.Context, flowID string, limit int) ([]domain.RunRecord, error)

	// Ping verifies the backing store is reachable. Used by readiness checks.
	Ping(ctx context.Context) error
}
