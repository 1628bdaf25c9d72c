package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}

type actorValue struct {
	actorType string
	actorID   string
}

// WithRequestID stores the request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id or empty string.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the acting principal on the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	actorType = strings.TrimSpace(actorType)
	actorID = strings.TrimSpace(actorID)
	if actorType == "" && actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorValue{actorType: actorType, actorID: actorID})
}

// ActorFromContext returns the actor type and id, empty when unset.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actorValue); ok {
		return v.actorType, v.actorID
	}
	return "", ""
}
