package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/workflow"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("agentmesh", reg, zap.NewNop()), reg
}

func TestRecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/bizdev_agent/process_lead", 200, 120*time.Millisecond)
	c.RecordHTTPRequest("POST", "/api/bizdev_agent/process_lead", 500, 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/api/bizdev_agent/process_lead", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/api/bizdev_agent/process_lead", "5xx")))
}

func TestObserverCallbacks(t *testing.T) {
	c, _ := newTestCollector(t)
	var obs workflow.Observer = c

	obs.StepStarted("lead_pipeline", "analyze")
	obs.StepFinished("lead_pipeline", "analyze", workflow.StepSucceeded, 10*time.Millisecond)
	obs.StepFinished("lead_pipeline", "create_record", workflow.StepFailed, 5*time.Millisecond)
	obs.RunFinished("lead_pipeline", false, 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.stepsTotal.WithLabelValues("lead_pipeline", "analyze", "succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.stepsTotal.WithLabelValues("lead_pipeline", "create_record", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.workflowRunsTotal.WithLabelValues("lead_pipeline", "failed")))
}

func TestRecordLLMRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordLLMRequest("openai", "gpt-4", "success", time.Second, 120, 48)

	assert.Equal(t, float64(120), testutil.ToFloat64(
		c.llmTokensUsed.WithLabelValues("openai", "gpt-4", "prompt")))
	assert.Equal(t, float64(48), testutil.ToFloat64(
		c.llmTokensUsed.WithLabelValues("openai", "gpt-4", "completion")))
}

func TestRecordUsage(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordUsage("bizdev")
	c.RecordUsage("bizdev")
	c.RecordUsage("marketing")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.usageRecordsTotal.WithLabelValues("bizdev")))

	expected := `
		# HELP agentmesh_usage_records_total Total number of metered usage records
		# TYPE agentmesh_usage_records_total counter
		agentmesh_usage_records_total{agent="bizdev"} 2
		agentmesh_usage_records_total{agent="marketing"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"agentmesh_usage_records_total"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(429))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(99))
}
