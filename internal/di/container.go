//go:build !wireinject
// +build !wireinject

// Package di wires configuration, AWS clients, the flow pipeline and the HTTP
// layer into a single container with ordered startup and shutdown.
package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/observability"
)

const awsConfigTimeout = 15 * time.Second

// NewContainer creates and initializes a new dependency container.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg, err := provideConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	c := &Container{
		Config:            cfg,
		shutdownFunctions: make([]func() error, 0),
	}

	if err := c.initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize container: %w", err)
	}

	return c, nil
}

// initialize sets up all dependencies in the correct order.
func (c *Container) initialize(ctx context.Context) error {
	// 1. Logging
	logger, err := provideLogger(c.Config)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	c.Logger = logger
	c.AddShutdownFunction(func() error {
		// Sync flushes buffered entries; stderr may reject it, which is fine.
		_ = logger.Sync()
		return nil
	})

	// 2. AWS clients
	if err := c.initAWSClients(ctx); err != nil {
		return fmt.Errorf("initialize AWS clients: %w", err)
	}

	// 3. Persistence
	c.ChannelRepository = provideChannelRepository(c.DynamoDBClient, c.Logger)
	c.RunRepository = provideRunRepository(c.DynamoDBClient, c.Config, c.Logger)

	// 4. Observability; the pipeline needs the collector.
	c.initObservability()

	// 5. Flow pipeline
	if err := c.initPipeline(ctx); err != nil {
		return fmt.Errorf("initialize flow pipeline: %w", err)
	}

	// 6. Runner, events and the triage service
	c.Runner = provideRunner(c.Registry, c.RunRepository, c.Metrics, c.Logger)
	c.Publisher = providePublisher(c.EventBridgeClient, c.Config, c.Logger)
	c.TriageService = provideTriageService(
		c.Config, c.ChannelRepository, c.RunRepository, c.Library,
		c.Runner, c.Registry, c.Publisher, c.Metrics, c.Logger,
	)

	// 7. HTTP router
	c.Router = provideRouter(c.TriageService, c.RunRepository, c.LLMProvider, c.Config, c.Metrics, c.Logger)

	c.Logger.Info("dependency container initialized",
		zap.String("environment", c.Config.Environment),
		zap.Bool("events", c.Config.EnableEvents),
		zap.Bool("metrics", c.Metrics != nil),
		zap.Bool("tracing", c.Tracer != nil),
	)
	return nil
}

func (c *Container) initAWSClients(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, awsConfigTimeout)
	defer cancel()

	awsCfg, err := provideAWSConfig(ctx, c.Config)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	httpClient := provideHTTPClient()
	c.DynamoDBClient = provideDynamoDBClient(awsCfg, httpClient)
	c.EventBridgeClient = provideEventBridgeClient(awsCfg, httpClient)
	c.BedrockClient = provideBedrockClient(awsCfg, httpClient)
	return nil
}

func (c *Container) initPipeline(ctx context.Context) error {
	provider, err := provideLLMProvider(ctx, c.Config, c.Metrics, c.Logger)
	if err != nil {
		return fmt.Errorf("build LLM provider: %w", err)
	}
	c.LLMProvider = provider

	registry, err := provideRegistry(provider, c.ChannelRepository, c.BedrockClient, c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("build component registry: %w", err)
	}
	c.Registry = registry

	library, err := provideLibrary(c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("load flow library: %w", err)
	}
	c.Library = library

	if c.Config.WatchFlows {
		watcher, err := flow.NewWatcher(library, c.Logger)
		if err != nil {
			// Hot reloading is a convenience; a missing or unwatchable
			// directory must not stop startup.
			c.Logger.Warn("flow hot reloading unavailable", zap.Error(err))
		} else {
			c.Watcher = watcher
			c.AddShutdownFunction(func() error {
				watcher.Stop()
				return nil
			})
		}
	}
	return nil
}

func (c *Container) initObservability() {
	c.Metrics = provideCollector(c.Config)

	if !c.Config.EnableTracing {
		return
	}
	tracer, err := observability.InitTracing("channelflow-backend", c.Config.Environment, c.Config.OTLPEndpoint)
	if err != nil {
		c.Logger.Warn("tracing disabled", zap.Error(err))
		return
	}
	c.Tracer = tracer
	c.AddShutdownFunction(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tracer.Shutdown(ctx)
	})
}

// Shutdown runs registered shutdown functions in reverse order. It is safe to
// call more than once.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Logger != nil {
		c.Logger.Info("shutting down dependency container")
	}

	var failed int
	for i := len(c.shutdownFunctions) - 1; i >= 0; i-- {
		if err := c.shutdownFunctions[i](); err != nil {
			failed++
			if c.Logger != nil {
				c.Logger.Error("shutdown step failed", zap.Error(err))
			}
		}
	}
	c.shutdownFunctions = c.shutdownFunctions[:0]

	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d errors", failed)
	}
	return nil
}

// Validate ensures all critical dependencies are initialized.
func (c *Container) Validate() error {
	if c.Config == nil {
		return fmt.Errorf("config not initialized")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger not initialized")
	}
	if c.DynamoDBClient == nil {
		return fmt.Errorf("DynamoDB client not initialized")
	}
	if c.ChannelRepository == nil {
		return fmt.Errorf("channel repository not initialized")
	}
	if c.RunRepository == nil {
		return fmt.Errorf("run repository not initialized")
	}
	if c.LLMProvider == nil {
		return fmt.Errorf("LLM provider not initialized")
	}
	if c.Registry == nil {
		return fmt.Errorf("component registry not initialized")
	}
	if c.Library == nil {
		return fmt.Errorf("flow library not initialized")
	}
	if c.Runner == nil {
		return fmt.Errorf("flow runner not initialized")
	}
	if c.Publisher == nil {
		return fmt.Errorf("event publisher not initialized")
	}
	if c.TriageService == nil {
		return fmt.Errorf("triage service not initialized")
	}
	if c.Router == nil {
		return fmt.Errorf("router not initialized")
	}
	return nil
}
