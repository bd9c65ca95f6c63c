package helper

import (
	"context"

	"github.com/gofrs/uuid"
)

type requestIDKey string

// RequestIDKey is the context key request ids are read from.
const RequestIDKey requestIDKey = "request_id"

func GetUuidV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WithRequestID stores id in ctx, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = GetUuidV7()
	}
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request id carried by ctx, or "unknown".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return id
	}
	if id, ok := ctx.Value("request_id").(string); ok && id != "" {
		return id
	}
	return "unknown"
}
