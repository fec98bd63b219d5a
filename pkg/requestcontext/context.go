// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them, services read them, and tests
// inject them without running the HTTP stack. Keeping this package free of
// net/http lets domain services stay transport-agnostic.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	actorUINKey    struct{}
)

// RequestID retrieves the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP callers (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into a context. Used by middleware so one
// request observes one timestamp, and by tests that assert on time fields.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// ActorUIN retrieves the acting participant from the context, or "" if the
// call is anonymous (onboarding, referral redirects).
func ActorUIN(ctx context.Context) string {
	if uin, ok := ctx.Value(actorUINKey{}).(string); ok {
		return uin
	}
	return ""
}

// WithActorUIN injects the acting participant into the context.
func WithActorUIN(ctx context.Context, uin string) context.Context {
	return context.WithValue(ctx, actorUINKey{}, uin)
}
