package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	roomIDKey    ctxKey = "room_id"
	playerIDKey  ctxKey = "player_id"
)

// WithRequestID stores the request id for later log enrichment.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRoom stores the room and player a request is acting on.
func WithRoom(ctx context.Context, roomID, playerID string) context.Context {
	ctx = context.WithValue(ctx, roomIDKey, roomID)
	if playerID != "" {
		ctx = context.WithValue(ctx, playerIDKey, playerID)
	}
	return ctx
}

// ContextLogger decorates a logger with the ids carried by a context.
type ContextLogger struct {
	logger *zap.SugaredLogger
}

func NewContextLogger(logger *zap.SugaredLogger) *ContextLogger {
	if logger == nil {
		logger = NewNop()
	}
	return &ContextLogger{logger: logger}
}

// For returns a logger with trace_id, request_id, room_id and player_id fields when present.
func (cl *ContextLogger) For(ctx context.Context) *zap.SugaredLogger {
	var kv []interface{}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		kv = append(kv, "trace_id", sc.TraceID().String())
	}
	for _, key := range []ctxKey{requestIDKey, roomIDKey, playerIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			kv = append(kv, string(key), v)
		}
	}

	if len(kv) == 0 {
		return cl.logger
	}
	return cl.logger.With(kv...)
}

// LogRequest logs a finished HTTP request.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMs int64) {
	cl.For(ctx).Infow("http_request",
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration_ms", durationMs,
	)
}
