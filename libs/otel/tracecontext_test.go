package otelx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	parent, _ := TraceContextStrings(ctx)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", parent)

	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), parent, ""))
	assert.Equal(t, traceID, restored.TraceID())
	assert.True(t, restored.IsRemote())
}

func TestContextWithEmptyTraceContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ContextWithTraceContext(ctx, "", ""))
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID})
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceID(trace.ContextWithSpanContext(context.Background(), sc)))
}
