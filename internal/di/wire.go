//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
)

// InitializeContainer builds the container through Wire. Running
// `wire ./internal/di` regenerates the implementation; the manual
// NewContainer path stays the default at runtime.
func InitializeContainer(ctx context.Context) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
