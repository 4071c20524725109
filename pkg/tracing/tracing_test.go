package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceRoomOperation_Attributes(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := TraceRoomOperation(context.Background(), "join", "ABC123", "p1")
	RecordError(ctx, errors.New("room is full"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "room.join", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "ABC123", attrs["room.id"])
	assert.Equal(t, "p1", attrs["player.id"])
	assert.Len(t, spans[0].Events(), 1)
}

func TestTraceRoomOperation_NoPlayer(t *testing.T) {
	rec := withRecorder(t)

	_, span := TraceRoomOperation(context.Background(), "create", "ABC123", "")
	span.End()

	for _, kv := range rec.Ended()[0].Attributes() {
		assert.NotEqual(t, PlayerIDKey, kv.Key)
	}
}

func TestHelpers_NoopWithoutSpan(t *testing.T) {
	ctx := context.Background()
	AddSpanAttributes(ctx, RoomIDKey.String("ABC123"))
	RecordError(ctx, errors.New("ignored"))
	RecordError(ctx, nil)

	_, span := TraceWebSocketMessage(ctx, "pose", "ABC123", "p1")
	span.End()
	_, span = TraceRepository(ctx, "redis", "update")
	span.End()
	_, span = TraceHTTPRequest(ctx, "GET", "/health")
	span.End()
}
