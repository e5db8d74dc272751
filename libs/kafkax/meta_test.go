package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "appointment.created.v1", Key: []byte("appt-1")})
	assert.Equal(t, EventMeta{EventID: "appt-1", EventType: "appointment.created.v1"}, meta)
}

func TestNewMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	msg := NewMessage(ctx, "notify.outbound.v1", "+254700000001", []byte(`{}`), EventMeta{EventID: "evt-1", EventType: "notify.outbound.v1"})
	assert.Equal(t, "evt-1", HeaderValue(msg.Headers, HeaderEventID))
	assert.Equal(t, "notify.outbound.v1", HeaderValue(msg.Headers, HeaderEventType))
	assert.NotEmpty(t, HeaderValue(msg.Headers, "traceparent"))

	restored := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	assert.Equal(t, traceID, restored.TraceID())
}
