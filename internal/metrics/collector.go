// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/flow"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Flow 指标
	flowInvocationsTotal   *prometheus.CounterVec
	flowInvocationDuration *prometheus.HistogramVec
	flowStateTransitions   *prometheus.CounterVec
	flowInFlight           *prometheus.GaugeVec

	// 后端指标
	backendRequestDuration *prometheus.HistogramVec
	backendTokensUsed      *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到 prometheus.DefaultRegisterer
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWith 创建注册到 reg 的指标收集器
func NewCollectorWith(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// Flow 指标
	c.flowInvocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_invocations_total",
			Help:      "Total number of flow invocations",
		},
		[]string{"flow", "outcome", "error_code"},
	)

	c.flowInvocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_invocation_duration_seconds",
			Help:      "Flow invocation duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"flow", "outcome"},
	)

	c.flowStateTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_state_transitions_total",
			Help:      "Total number of flow state transitions",
		},
		[]string{"flow", "from_state", "to_state"},
	)

	c.flowInFlight = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_invocations_in_flight",
			Help:      "Number of flow invocations currently running",
		},
		[]string{"flow"},
	)

	// 后端指标
	c.backendRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Generation backend call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "flow"},
	)

	c.backendTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_tokens_used_total",
			Help:      "Total number of tokens reported by the backend",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(max(requestSize, 0)))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(max(responseSize, 0)))
}

// =============================================================================
// 🔁 Flow 指标记录（flow.Observer 实现）
// =============================================================================

// Observer 返回把状态机事件记录为指标的 flow.Observer
func (c *Collector) Observer() flow.Observer {
	return flowObserver{c: c}
}

type flowObserver struct {
	c *Collector
}

func (o flowObserver) OnStart(ctx context.Context, name string) context.Context {
	o.c.flowInFlight.WithLabelValues(name).Inc()
	return ctx
}

func (o flowObserver) OnTransition(_ context.Context, name string, from, to flow.State) {
	o.c.flowStateTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

func (o flowObserver) OnFinish(_ context.Context, out flow.Outcome) {
	o.c.RecordFlowOutcome(out)
}

// RecordFlowOutcome 记录一次结束的调用
func (c *Collector) RecordFlowOutcome(out flow.Outcome) {
	outcome := out.Final.String()
	c.flowInFlight.WithLabelValues(out.Flow).Dec()
	c.flowInvocationsTotal.WithLabelValues(out.Flow, outcome, string(out.Code)).Inc()
	c.flowInvocationDuration.WithLabelValues(out.Flow, outcome).Observe(out.Duration.Seconds())

	if out.BackendDuration > 0 {
		c.backendRequestDuration.WithLabelValues(out.Provider, out.Flow).Observe(out.BackendDuration.Seconds())
	}
	if out.Usage.PromptTokens > 0 {
		c.backendTokensUsed.WithLabelValues(out.Provider, out.Model, "prompt").Add(float64(out.Usage.PromptTokens))
	}
	if out.Usage.CompletionTokens > 0 {
		c.backendTokensUsed.WithLabelValues(out.Provider, out.Model, "completion").Add(float64(out.Usage.CompletionTokens))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
