package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSingleton(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	first := NewCollector("channelflow")
	second := NewCollector("other")
	assert.Same(t, first, second)

	ResetForTesting()
	third := NewCollector("channelflow")
	assert.NotSame(t, first, third)
}

func TestCollectorCounts(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	c := NewCollector("channelflow")
	c.ItemsAppended.Inc()
	c.ItemsAppended.Inc()
	c.ItemsUpdated.Inc()
	c.FlowRuns.WithLabelValues("message-processing-flow", "succeeded").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ItemsAppended))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ItemsUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FlowRuns.WithLabelValues("message-processing-flow", "succeeded")))
}

func TestCollectorHandler(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	c := NewCollector("channelflow")
	c.ItemsAppended.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "channelflow_items_appended_total")
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := NewLogger(env, "debug")
		require.NoError(t, err)
		require.NotNil(t, logger)
	}

	_, err := NewLogger("development", "nonsense")
	assert.NoError(t, err)
}
