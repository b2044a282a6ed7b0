package di

import (
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/config"
	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/llm"
	"channelflow-backend/internal/messaging"
	"channelflow-backend/internal/observability"
	"channelflow-backend/internal/repository"
	"channelflow-backend/internal/repository/ddb"
	"channelflow-backend/internal/runner"
	"channelflow-backend/internal/service/triage"
)

// Container holds every long-lived dependency of the service. The type is
// shared between the manual initialization path and the Wire configuration.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// AWS clients
	DynamoDBClient    *dynamodb.Client
	EventBridgeClient *awseventbridge.Client
	BedrockClient     *bedrockagentruntime.Client

	// Persistence
	ChannelRepository repository.ChannelRepository
	RunRepository     *ddb.RunRepository

	// Flow pipeline
	LLMProvider llm.Provider
	Registry    *component.Registry
	Library     *flow.Library
	Watcher     *flow.Watcher
	Runner      *runner.Runner

	// Cross-cutting
	Publisher messaging.Publisher
	Metrics   *observability.Collector
	Tracer    *observability.TracerProvider

	// Interface layer
	TriageService triage.Service
	Router        http.Handler

	shutdownFunctions []func() error
}

// AddShutdownFunction registers a function to run during Shutdown. Functions
// run in reverse registration order.
func (c *Container) AddShutdownFunction(fn func() error) {
	c.shutdownFunctions = append(c.shutdownFunctions, fn)
}
