package auditcontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}
type settlementIDKey struct{}
type passIDKey struct{}

// WithRequestID stores the request id for audit enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey{})
}

// WithIPAddress stores the caller IP for audit enrichment.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return withString(ctx, ipAddressKey{}, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFrom(ctx, ipAddressKey{})
}

// WithUserAgent stores the caller user agent for audit enrichment.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return withString(ctx, userAgentKey{}, ua)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFrom(ctx, userAgentKey{})
}

// WithSettlementID tags the context with the settlement being mutated.
func WithSettlementID(ctx context.Context, id string) context.Context {
	return withString(ctx, settlementIDKey{}, id)
}

func SettlementIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, settlementIDKey{})
}

// WithPassID tags the context with the pass being mutated.
func WithPassID(ctx context.Context, id string) context.Context {
	return withString(ctx, passIDKey{}, id)
}

func PassIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, passIDKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
