package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/genflow/flow"
)

// FlowTracer records one span per flow invocation with an event per state transition.
type FlowTracer struct {
	tracer trace.Tracer
}

var _ flow.Observer = (*FlowTracer)(nil)

// NewFlowTracer creates a flow observer over tracer.
func NewFlowTracer(tracer trace.Tracer) *FlowTracer {
	return &FlowTracer{tracer: tracer}
}

func (t *FlowTracer) OnStart(ctx context.Context, name string) context.Context {
	ctx, _ = t.tracer.Start(ctx, "flow.invoke",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("flow.name", name)),
	)
	return ctx
}

func (t *FlowTracer) OnTransition(ctx context.Context, _ string, from, to flow.State) {
	trace.SpanFromContext(ctx).AddEvent("flow.transition", trace.WithAttributes(
		attribute.String("flow.from", from.String()),
		attribute.String("flow.to", to.String()),
	))
}

func (t *FlowTracer) OnFinish(ctx context.Context, out flow.Outcome) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("flow.final_state", out.Final.String()),
		attribute.String("flow.reached_state", out.Reached.String()),
		attribute.String("flow.provider", out.Provider),
		attribute.Int64("flow.backend_ms", out.BackendDuration.Milliseconds()),
	)
	if out.Model != "" {
		span.SetAttributes(attribute.String("flow.model", out.Model))
	}
	if out.Final == flow.StateFailed {
		span.SetAttributes(attribute.String("flow.error_code", string(out.Code)))
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		} else {
			span.SetStatus(codes.Error, string(out.Code))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
