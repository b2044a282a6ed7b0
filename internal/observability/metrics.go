// Package observability holds the Prometheus collector, tracer setup and
// the zap logger factory shared by the entrypoints.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Flow metrics
	FlowRuns     *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec

	// Triage metrics
	ItemsAppended prometheus.Counter
	ItemsUpdated  prometheus.Counter

	// LLM metrics
	LLMCalls *prometheus.CounterVec
}

// NewCollector creates the metrics collector with the given namespace. A
// process holds a single collector; repeated calls return the first one so
// tests and Lambda cold starts never double-register.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	flowRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_runs_total",
			Help:      "Total number of flow executions",
		},
		[]string{"flow_id", "status"},
	)

	nodeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_node_duration_seconds",
			Help:      "Per-node execution time in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"flow_id", "node_type"},
	)

	itemsAppended := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_appended_total",
			Help:      "Total number of tracked items appended to channels",
		},
	)

	itemsUpdated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_updated_total",
			Help:      "Total number of tracked items updated in place",
		},
	)

	llmCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of LLM provider calls",
		},
		[]string{"operation", "status"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		flowRuns,
		nodeDuration,
		itemsAppended,
		itemsUpdated,
		llmCalls,
	)

	globalCollector = &Collector{
		registry:      registry,
		HTTPRequests:  httpRequests,
		HTTPDuration:  httpDuration,
		FlowRuns:      flowRuns,
		NodeDuration:  nodeDuration,
		ItemsAppended: itemsAppended,
		ItemsUpdated:  itemsUpdated,
		LLMCalls:      llmCalls,
	}

	return globalCollector
}

// ResetForTesting drops the global collector so the next NewCollector call
// builds a fresh registry.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// Handler serves the collector's registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry for this collector.
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
