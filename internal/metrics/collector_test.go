package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/types"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollectorWith(prometheus.NewRegistry(), "test", zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	c := newTestCollector(t)

	assert.NotNil(t, c.httpRequestsTotal)
	assert.NotNil(t, c.flowInvocationsTotal)
	assert.NotNil(t, c.flowStateTransitions)
	assert.NotNil(t, c.backendRequestDuration)
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollectorWith(reg, "dup", nil)
	assert.Panics(t, func() { NewCollectorWith(reg, "dup", nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/health", 200, 10*time.Millisecond, 0, 64)
	c.RecordHTTPRequest("GET", "/health", 204, 5*time.Millisecond, 0, 0)
	c.RecordHTTPRequest("POST", "/api/v1/flows/{name}/invoke", 400, 5*time.Millisecond, 128, 256)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/flows/{name}/invoke", "4xx")))
}

func TestCollector_FlowObserver(t *testing.T) {
	c := newTestCollector(t)
	obs := c.Observer()
	ctx := context.Background()

	ctx = obs.OnStart(ctx, "checkBacklinks")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flowInFlight.WithLabelValues("checkBacklinks")))

	obs.OnTransition(ctx, "checkBacklinks", flow.StateIdle, flow.StateValidatingInput)
	obs.OnTransition(ctx, "checkBacklinks", flow.StateValidatingInput, flow.StateFailed)
	obs.OnFinish(ctx, flow.Outcome{
		Flow:     "checkBacklinks",
		Final:    flow.StateFailed,
		Reached:  flow.StateValidatingInput,
		Code:     types.ErrInputValidation,
		Duration: time.Millisecond,
	})

	assert.Equal(t, 0.0, testutil.ToFloat64(c.flowInFlight.WithLabelValues("checkBacklinks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flowInvocationsTotal.WithLabelValues("checkBacklinks", "failed", "INPUT_VALIDATION_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flowStateTransitions.WithLabelValues("checkBacklinks", "validating_input", "failed")))
	// 未调用后端时不记录后端耗时
	assert.Equal(t, 0, testutil.CollectAndCount(c.backendRequestDuration))
}

func TestCollector_RecordFlowOutcome_Success(t *testing.T) {
	c := newTestCollector(t)

	c.RecordFlowOutcome(flow.Outcome{
		Flow:            "generateMetaTags",
		Final:           flow.StateSucceeded,
		Reached:         flow.StateValidatingOutput,
		Provider:        "gemini",
		Model:           "gemini-2.0-flash",
		Usage:           llm.Usage{PromptTokens: 120, CompletionTokens: 40},
		Duration:        2 * time.Second,
		BackendDuration: 1900 * time.Millisecond,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.flowInvocationsTotal.WithLabelValues("generateMetaTags", "succeeded", "")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.backendTokensUsed.WithLabelValues("gemini", "gemini-2.0-flash", "prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.backendTokensUsed.WithLabelValues("gemini", "gemini-2.0-flash", "completion")))
	require.Equal(t, 1, testutil.CollectAndCount(c.backendRequestDuration))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{502, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}
