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

func TestExtractEventMeta_FallsBackToKeyAndTopic(t *testing.T) {
	msg := kafka.Message{Topic: "booking.created.v1", Key: []byte("bk-1")}
	meta := ExtractEventMeta(msg)
	assert.Equal(t, "bk-1", meta.EventID)
	assert.Equal(t, "booking.created.v1", meta.EventType)

	msg.Headers = []kafka.Header{{Key: "event_id", Value: []byte("evt-9")}, {Key: "event_type", Value: []byte("x.v1")}}
	meta = ExtractEventMeta(msg)
	assert.Equal(t, "evt-9", meta.EventID)
	assert.Equal(t, "x.v1", meta.EventType)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, SplitBrokers(""))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled, Remote: true})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("e1")}})
	assert.Equal(t, "e1", HeaderValue(headers, "event_id"))
	assert.NotEmpty(t, HeaderValue(headers, "traceparent"))

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	assert.Equal(t, traceID, got.TraceID())
}

func TestEventMeta_HeadersRoundTrip(t *testing.T) {
	meta := EventMeta{EventID: "evt-1", EventType: "booking.created.v1"}
	msg := kafka.Message{Topic: "other", Key: []byte("k"), Headers: meta.Headers()}
	assert.Equal(t, meta, ExtractEventMeta(msg))
}
