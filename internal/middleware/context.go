// Package middleware provides the HTTP middleware chain: tracing,
// authentication, rate limiting, CORS and metrics.
package middleware

import "context"

type contextKey string

const (
	userUIDKey  contextKey = "user_uid"
	nicknameKey contextKey = "nickname"
	roleKey     contextKey = "role"
	traceIDKey  contextKey = "trace_id"
)

// UserUID extracts the authenticated user UID from the context, zero when
// the request was not authenticated.
func UserUID(ctx context.Context) int64 {
	uid, _ := ctx.Value(userUIDKey).(int64)
	return uid
}

// Nickname extracts the authenticated nickname from the context.
func Nickname(ctx context.Context) string {
	n, _ := ctx.Value(nicknameKey).(string)
	return n
}

// Role extracts the authenticated role from the context.
func Role(ctx context.Context) string {
	r, _ := ctx.Value(roleKey).(string)
	return r
}

// TraceID extracts the request trace ID from the context.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
