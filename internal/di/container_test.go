package di

import (
	"context"
	"testing"

	"channelflow-backend/internal/messaging"
)

// setTestEnv points the container at offline-safe dependencies. No test here
// may reach AWS or a real model provider.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("WATCH_FLOWS", "false")
	t.Setenv("ENABLE_TRACING", "false")
}

func TestNewContainer(t *testing.T) {
	setTestEnv(t)

	container, err := NewContainer(context.Background())
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	defer container.Shutdown(context.Background())

	if err := container.Validate(); err != nil {
		t.Errorf("Container validation failed: %v", err)
	}
}

func TestContainerComponents(t *testing.T) {
	setTestEnv(t)

	container, err := NewContainer(context.Background())
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	defer container.Shutdown(context.Background())

	if container.DynamoDBClient == nil {
		t.Error("DynamoDBClient should be initialized")
	}
	if container.EventBridgeClient == nil {
		t.Error("EventBridgeClient should be initialized")
	}
	if container.BedrockClient == nil {
		t.Error("BedrockClient should be initialized")
	}
	if container.ChannelRepository == nil {
		t.Error("ChannelRepository should be initialized")
	}
	if container.RunRepository == nil {
		t.Error("RunRepository should be initialized")
	}
	if container.LLMProvider == nil {
		t.Error("LLMProvider should be initialized")
	}
	if container.Registry == nil {
		t.Error("Registry should be initialized")
	}
	if container.Library == nil {
		t.Error("Library should be initialized")
	}
	if container.Runner == nil {
		t.Error("Runner should be initialized")
	}
	if container.TriageService == nil {
		t.Error("TriageService should be initialized")
	}
	if container.Router == nil {
		t.Error("Router should be initialized")
	}
}

func TestContainerValidation(t *testing.T) {
	empty := &Container{}
	if err := empty.Validate(); err == nil {
		t.Error("Empty container should fail validation")
	}
}

func TestPublisherDisabled(t *testing.T) {
	setTestEnv(t)
	t.Setenv("ENABLE_EVENTS", "false")

	container, err := NewContainer(context.Background())
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	defer container.Shutdown(context.Background())

	if _, ok := container.Publisher.(messaging.NoopPublisher); !ok {
		t.Errorf("Publisher should be a NoopPublisher when events are disabled, got %T", container.Publisher)
	}
}

func TestMetricsDisabled(t *testing.T) {
	setTestEnv(t)
	t.Setenv("ENABLE_METRICS", "false")

	container, err := NewContainer(context.Background())
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	defer container.Shutdown(context.Background())

	if container.Metrics != nil {
		t.Error("Metrics collector should be nil when metrics are disabled")
	}
}

func TestFlowWatcher(t *testing.T) {
	setTestEnv(t)
	t.Setenv("WATCH_FLOWS", "true")

	t.Run("missing directory does not stop startup", func(t *testing.T) {
		t.Setenv("FLOWS_DIR", "does/not/exist")

		container, err := NewContainer(context.Background())
		if err != nil {
			t.Fatalf("Failed to create container: %v", err)
		}
		defer container.Shutdown(context.Background())

		if container.Watcher != nil {
			t.Error("Watcher should not start for a missing directory")
		}
	})

	t.Run("existing directory is watched", func(t *testing.T) {
		t.Setenv("FLOWS_DIR", t.TempDir())

		container, err := NewContainer(context.Background())
		if err != nil {
			t.Fatalf("Failed to create container: %v", err)
		}
		defer container.Shutdown(context.Background())

		if container.Watcher == nil {
			t.Error("Watcher should be running for an existing directory")
		}
	})
}

func TestContainerShutdown(t *testing.T) {
	setTestEnv(t)

	container, err := NewContainer(context.Background())
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}

	var order []string
	container.AddShutdownFunction(func() error {
		order = append(order, "first")
		return nil
	})
	container.AddShutdownFunction(func() error {
		order = append(order, "second")
		return nil
	})

	if err := container.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown should not fail: %v", err)
	}

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("Shutdown functions should run in reverse order, got %v", order)
	}

	// Second shutdown is a no-op.
	if err := container.Shutdown(context.Background()); err != nil {
		t.Errorf("Repeated shutdown should be safe: %v", err)
	}
}
