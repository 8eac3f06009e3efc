package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/genflow/flow"
)

// FlowMeter exports invocation counts, latencies and token usage as OTel metrics.
type FlowMeter struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	backend     metric.Float64Histogram
	tokens      metric.Int64Counter
}

var _ flow.Observer = (*FlowMeter)(nil)

// NewFlowMeter creates the instruments on meter.
func NewFlowMeter(meter metric.Meter) (*FlowMeter, error) {
	m := &FlowMeter{}
	var err error
	if m.invocations, err = meter.Int64Counter("genflow.flow.invocations",
		metric.WithDescription("Finished flow invocations"),
		metric.WithUnit("{invocation}"),
	); err != nil {
		return nil, fmt.Errorf("create invocations counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("genflow.flow.duration",
		metric.WithDescription("Flow invocation duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if m.backend, err = meter.Float64Histogram("genflow.backend.duration",
		metric.WithDescription("Time spent awaiting the generation backend"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create backend histogram: %w", err)
	}
	if m.tokens, err = meter.Int64Counter("genflow.backend.tokens",
		metric.WithDescription("Tokens reported by the generation backend"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("create tokens counter: %w", err)
	}
	return m, nil
}

func (m *FlowMeter) OnStart(ctx context.Context, _ string) context.Context { return ctx }

func (m *FlowMeter) OnTransition(context.Context, string, flow.State, flow.State) {}

func (m *FlowMeter) OnFinish(ctx context.Context, out flow.Outcome) {
	outcome := "success"
	if out.Final == flow.StateFailed {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("flow.name", out.Flow),
		attribute.String("flow.outcome", outcome),
		attribute.String("flow.error_code", string(out.Code)),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, out.Duration.Seconds(), attrs)

	if out.BackendDuration > 0 {
		m.backend.Record(ctx, out.BackendDuration.Seconds(), metric.WithAttributes(
			attribute.String("flow.name", out.Flow),
			attribute.String("flow.provider", out.Provider),
		))
	}
	for kind, n := range map[string]int{"prompt": out.Usage.PromptTokens, "completion": out.Usage.CompletionTokens} {
		if n > 0 {
			m.tokens.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("flow.provider", out.Provider),
				attribute.String("token.type", kind),
			))
		}
	}
}
