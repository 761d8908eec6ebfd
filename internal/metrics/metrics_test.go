package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laplaque/llmguard/internal/metrics"
	"github.com/laplaque/llmguard/internal/types"
)

func TestCollector_ExposesRegisteredMetrics(t *testing.T) {
	c := metrics.New()
	c.RecordOutcome(types.ProviderAnthropic, true)
	c.RecordOutcome(types.ProviderAnthropic, false)
	c.RecordViolation(types.NewViolation(types.CodeInjectionDetected, types.InterceptorInjection, "blocked", nil))
	c.RecordAdapterLatency(types.ProviderAnthropic, 250*time.Millisecond)
	c.RecordCost(types.ProviderAnthropic, 0.0015)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "llmguard_pipeline_outcomes_total")
	assert.Contains(t, body, "llmguard_interceptor_blocks_total")
	assert.Contains(t, body, "llmguard_adapter_execute_seconds")
	assert.Contains(t, body, "llmguard_request_cost_usd")
}

func TestCollector_AdapterErrorIncrementsErrorCounter(t *testing.T) {
	c := metrics.New()
	c.RecordViolation(types.NewViolation(types.CodeAdapterError, types.InterceptorOrchestrator, "timeout",
		map[string]any{"provider": "openai"}))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "llmguard_adapter_errors_total")
}
