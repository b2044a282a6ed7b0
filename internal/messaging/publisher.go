// Package messaging defines the event bus port used after triage.
package messaging

import (
	"context"

	"channelflow-backend/internal/domain"
)

// Publisher delivers item events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, event domain.ItemEvent) error
}

// NoopPublisher drops events. Used when the bus is disabled.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, domain.ItemEvent) error { return nil }
