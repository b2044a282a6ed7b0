package di

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/component/dynamo"
	"channelflow-backend/internal/component/knowledge"
	"channelflow-backend/internal/component/processor"
	"channelflow-backend/internal/config"
	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/interfaces/http/rest"
	"channelflow-backend/internal/llm"
	"channelflow-backend/internal/messaging"
	ebmessaging "channelflow-backend/internal/messaging/eventbridge"
	"channelflow-backend/internal/observability"
	"channelflow-backend/internal/repository"
	"channelflow-backend/internal/repository/ddb"
	"channelflow-backend/internal/runner"
	"channelflow-backend/internal/service/triage"
)

// Provider functions build individual dependencies. The container phases call
// them directly; the Wire sets reference the same functions so the generated
// and manual paths cannot drift apart.

func provideConfig() (*config.Config, error) {
	return config.LoadConfig()
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Environment, cfg.LogLevel)
}

func provideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// provideHTTPClient returns the shared AWS transport. Keep-alive stays on so
// warm invocations reuse TCP connections instead of re-handshaking.
func provideHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func provideDynamoDBClient(awsCfg aws.Config, httpClient *http.Client) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.HTTPClient = httpClient
		o.RetryMaxAttempts = 3
		o.RetryMode = aws.RetryModeAdaptive
	})
}

func provideEventBridgeClient(awsCfg aws.Config, httpClient *http.Client) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg, func(o *awseventbridge.Options) {
		o.HTTPClient = httpClient
		o.RetryMaxAttempts = 3
	})
}

func provideBedrockClient(awsCfg aws.Config, httpClient *http.Client) *bedrockagentruntime.Client {
	return bedrockagentruntime.NewFromConfig(awsCfg, func(o *bedrockagentruntime.Options) {
		o.HTTPClient = httpClient
	})
}

func provideChannelRepository(client *dynamodb.Client, logger *zap.Logger) repository.ChannelRepository {
	return ddb.NewChannelRepository(client, logger)
}

func provideRunRepository(client *dynamodb.Client, cfg *config.Config, logger *zap.Logger) *ddb.RunRepository {
	ttl := time.Duration(cfg.RunTTLHours) * time.Hour
	return ddb.NewRunRepository(client, cfg.RunsTable, ttl, logger)
}

func provideLLMProvider(ctx context.Context, cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (llm.Provider, error) {
	p, err := llm.NewProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		p = llm.NewInstrumentedProvider(p, metrics.LLMCalls)
	}
	return p, nil
}

func provideRegistry(
	provider llm.Provider,
	repo repository.ChannelRepository,
	bedrock *bedrockagentruntime.Client,
	cfg *config.Config,
	logger *zap.Logger,
) (*component.Registry, error) {
	return component.NewRegistry(
		processor.New(provider, cfg.LLM, logger),
		dynamo.New(repo, logger),
		knowledge.New(bedrock, cfg.Bedrock, logger),
	)
}

func provideLibrary(cfg *config.Config, logger *zap.Logger) (*flow.Library, error) {
	return flow.NewLibrary(cfg.FlowsDir, logger)
}

// provideCollector returns nil when metrics are disabled; consumers treat a
// nil collector as "don't record".
func provideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("channelflow")
}

func provideRunner(
	registry *component.Registry,
	runs *ddb.RunRepository,
	metrics *observability.Collector,
	logger *zap.Logger,
) *runner.Runner {
	opts := []runner.Option{runner.WithRecorder(runs)}
	if metrics != nil {
		opts = append(opts, runner.WithMetrics(metrics))
	}
	return runner.New(registry, logger, opts...)
}

func providePublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) messaging.Publisher {
	if !cfg.EnableEvents || cfg.EventBusName == "" {
		return messaging.NoopPublisher{}
	}
	return ebmessaging.NewPublisher(client, cfg.EventBusName, logger)
}

func provideTriageService(
	cfg *config.Config,
	repo repository.ChannelRepository,
	runs *ddb.RunRepository,
	library *flow.Library,
	run *runner.Runner,
	registry *component.Registry,
	publisher messaging.Publisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) triage.Service {
	return triage.New(cfg.Tables, repo, runs, library, run, registry, publisher, metrics, logger)
}

func provideRouter(
	svc triage.Service,
	runs *ddb.RunRepository,
	provider llm.Provider,
	cfg *config.Config,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(svc, runs, provider, cfg, metrics, logger).Setup()
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	dynamoClient *dynamodb.Client,
	eventBridgeClient *awseventbridge.Client,
	bedrockClient *bedrockagentruntime.Client,
	channelRepo repository.ChannelRepository,
	runRepo *ddb.RunRepository,
	provider llm.Provider,
	registry *component.Registry,
	library *flow.Library,
	run *runner.Runner,
	publisher messaging.Publisher,
	metrics *observability.Collector,
	svc triage.Service,
	router http.Handler,
) *Container {
	return &Container{
		Config:            cfg,
		Logger:            logger,
		DynamoDBClient:    dynamoClient,
		EventBridgeClient: eventBridgeClient,
		BedrockClient:     bedrockClient,
		ChannelRepository: channelRepo,
		RunRepository:     runRepo,
		LLMProvider:       provider,
		Registry:          registry,
		Library:           library,
		Runner:            run,
		Publisher:         publisher,
		Metrics:           metrics,
		TriageService:     svc,
		Router:            router,
	}
}
