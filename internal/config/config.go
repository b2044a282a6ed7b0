// Package config loads application configuration from an optional YAML file
// and the process environment. Precedence is defaults, then file, then
// environment, so deployed overrides always win.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Tables maps each tracker category to its DynamoDB table.
type Tables struct {
	Bugs    string `yaml:"bugs"`
	Blocked string `yaml:"blocked"`
	Tasks   string `yaml:"tasks"`
}

// For resolves the table backing a category name (BUGS, BLOCKED, TASKS).
func (t Tables) For(category string) (string, error) {
	switch category {
	case "BUGS":
		return t.Bugs, nil
	case "BLOCKED":
		return t.Blocked, nil
	case "TASKS":
		return t.Tasks, nil
	}
	return "", fmt.Errorf("no table configured for category %q", category)
}

// LLMConfig configures the language model provider used for embeddings and
// status classification.
type LLMConfig struct {
	Provider            string  `yaml:"provider"` // genai or mock
	APIKey              string  `yaml:"api_key"`
	CompletionModel     string  `yaml:"completion_model"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxConcurrentEmbeds int     `yaml:"max_concurrent_embeds"`
}

// BedrockConfig configures the knowledge base component.
type BedrockConfig struct {
	KnowledgeBaseID string  `yaml:"knowledge_base_id"`
	ModelARN        string  `yaml:"model_arn"`
	MaxResults      int     `yaml:"max_results"`
	Temperature     float64 `yaml:"temperature"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion    string `yaml:"aws_region"`
	Tables       Tables `yaml:"tables"`
	RunsTable    string `yaml:"runs_table"`
	RunTTLHours  int    `yaml:"run_ttl_hours"`
	EventBusName string `yaml:"event_bus_name"`

	// Flow library
	FlowsDir   string `yaml:"flows_dir"`
	WatchFlows bool   `yaml:"watch_flows"`

	// Authentication
	APIKey string `yaml:"api_key"`

	// Providers
	LLM     LLMConfig     `yaml:"llm"`
	Bedrock BedrockConfig `yaml:"bedrock"`

	// Logging and features
	LogLevel      string `yaml:"log_level"`
	EnableEvents  bool   `yaml:"enable_events"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	EnableCORS    bool   `yaml:"enable_cors"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
}

func defaults() *Config {
	return &Config{
		ServerAddress: ":8080",
		Environment:   "development",
		AWSRegion:     "us-west-2",
		Tables: Tables{
			Bugs:    "BUGS",
			Blocked: "BLOCKED",
			Tasks:   "TASKS",
		},
		RunsTable:    "FLOW_RUNS",
		RunTTLHours:  24 * 14,
		EventBusName: "channelflow-events",
		FlowsDir:     "flows",
		WatchFlows:   true,
		LLM: LLMConfig{
			Provider:            "genai",
			CompletionModel:     "gemini-2.5-flash",
			EmbeddingModel:      "gemini-embedding-001",
			SimilarityThreshold: 0.85,
			MaxConcurrentEmbeds: 4,
		},
		Bedrock: BedrockConfig{
			ModelARN:    "arn:aws:bedrock:us-west-2::foundation-model/anthropic.claude-3-5-sonnet-20240620-v1:0",
			MaxResults:  5,
			Temperature: 0,
		},
		LogLevel:      "info",
		EnableEvents:  true,
		EnableMetrics: true,
		EnableCORS:    true,
	}
}

// LoadConfig loads configuration from CONFIG_FILE (when set) and the
// environment, then validates it.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.Tables.Bugs = getEnv("TABLE_BUGS", c.Tables.Bugs)
	c.Tables.Blocked = getEnv("TABLE_BLOCKED", c.Tables.Blocked)
	c.Tables.Tasks = getEnv("TABLE_TASKS", c.Tables.Tasks)
	c.RunsTable = getEnv("FLOW_RUNS_TABLE", c.RunsTable)
	c.RunTTLHours = getEnvInt("FLOW_RUN_TTL_HOURS", c.RunTTLHours)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.FlowsDir = getEnv("FLOWS_DIR", c.FlowsDir)
	c.WatchFlows = getEnvBool("WATCH_FLOWS", c.WatchFlows)

	c.APIKey = getEnv("API_KEY", c.APIKey)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("GENAI_API_KEY", c.LLM.APIKey)
	c.LLM.CompletionModel = getEnv("LLM_COMPLETION_MODEL", c.LLM.CompletionModel)
	c.LLM.EmbeddingModel = getEnv("LLM_EMBEDDING_MODEL", c.LLM.EmbeddingModel)
	c.LLM.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", c.LLM.SimilarityThreshold)
	c.LLM.MaxConcurrentEmbeds = getEnvInt("MAX_CONCURRENT_EMBEDS", c.LLM.MaxConcurrentEmbeds)

	c.Bedrock.KnowledgeBaseID = getEnv("BEDROCK_KB_ID", c.Bedrock.KnowledgeBaseID)
	c.Bedrock.ModelARN = getEnv("BEDROCK_MODEL_ARN", c.Bedrock.ModelARN)
	c.Bedrock.MaxResults = getEnvInt("BEDROCK_MAX_RESULTS", c.Bedrock.MaxResults)
	c.Bedrock.Temperature = getEnvFloat("BEDROCK_TEMPERATURE", c.Bedrock.Temperature)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Tables.Bugs == "" || c.Tables.Blocked == "" || c.Tables.Tasks == "" {
		return fmt.Errorf("all category tables must be configured")
	}
	if c.RunsTable == "" {
		return fmt.Errorf("FLOW_RUNS_TABLE is required")
	}
	if c.LLM.SimilarityThreshold <= 0 || c.LLM.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.LLM.SimilarityThreshold)
	}
	if c.LLM.MaxConcurrentEmbeds < 1 {
		return fmt.Errorf("MAX_CONCURRENT_EMBEDS must be at least 1")
	}

	switch c.LLM.Provider {
	case "genai":
		if c.IsProduction() && c.LLM.APIKey == "" {
			return fmt.Errorf("GENAI_API_KEY is required in production")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}

	if c.IsProduction() {
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY is required in production")
		}
		if c.EnableEvents && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
