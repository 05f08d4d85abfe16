package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey int

const (
	runKey ctxKey = iota
	requestKey
	documentKey
)

// Attribute keys shared by logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	DocumentKey      = "document"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	StatusKey        = "status"
)

// contextKeys lists the values copied onto every log record, in output order.
var contextKeys = []struct {
	key  ctxKey
	attr string
}{
	{runKey, CorrelationIDKey},
	{requestKey, RequestIDKey},
	{documentKey, DocumentKey},
}

// WithCorrelationID tags ctx with the id of a batch. An empty id gets a new UUID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withID(ctx, runKey, id)
}

// CorrelationIDFromContext returns the batch id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return fromContext(ctx, runKey)
}

// WithRequestID tags ctx with the id of an HTTP or MCP request. An empty id
// gets a new UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestKey, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return fromContext(ctx, requestKey)
}

// WithDocument tags ctx with the document being recognized.
func WithDocument(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, documentKey, path)
}

// DocumentFromContext returns the document path, or "".
func DocumentFromContext(ctx context.Context) string {
	return fromContext(ctx, documentKey)
}

// ContextAttrs returns the ids carried by ctx as log attributes.
func ContextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, k := range contextKeys {
		if v := fromContext(ctx, k.key); v != "" {
			attrs = append(attrs, slog.String(k.attr, v))
		}
	}
	return attrs
}

func withID(ctx context.Context, key ctxKey, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, key, id)
}

func fromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
