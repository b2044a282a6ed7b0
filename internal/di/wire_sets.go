package di

import (
	"github.com/google/wire"
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	PipelineProviders,
	InterfaceProviders,
	provideContainer,
)

// ConfigProviders provides configuration and logging, the foundation every
// other layer depends on.
var ConfigProviders = wire.NewSet(
	provideConfig,
	provideLogger,
)

// InfrastructureProviders provides AWS clients and repositories.
var InfrastructureProviders = wire.NewSet(
	provideAWSConfig,
	provideHTTPClient,
	provideDynamoDBClient,
	provideEventBridgeClient,
	provideBedrockClient,
	provideChannelRepository,
	provideRunRepository,
)

// PipelineProviders provides the flow execution pipeline.
var PipelineProviders = wire.NewSet(
	provideLLMProvider,
	provideRegistry,
	provideLibrary,
	provideCollector,
	provideRunner,
	providePublisher,
)

// InterfaceProviders provides the service facade and the HTTP layer.
var InterfaceProviders = wire.NewSet(
	provideTriageService,
	provideRouter,
)
