package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/qollective/qollective-go/envelope"
)

// TracingMetaFromContext populates a TracingMeta from ctx's active span, if
// any. It returns nil when ctx carries no valid span context, so callers can
// leave Meta.Tracing unset rather than attach an empty-but-present struct.
func TracingMetaFromContext(ctx context.Context) *envelope.TracingMeta {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return nil
	}

	tm := &envelope.TracingMeta{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
	}
	if sc.TraceState().Len() > 0 {
		tm.TraceState = sc.TraceState().String()
	}
	return tm
}
