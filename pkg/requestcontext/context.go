// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them, services read them; keeping
// the package free of net/http lets services avoid transport imports.
//
// Usage in services:
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"casework/pkg/domain"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorInfo identifies the user driving the current request. Services attach
// it to history notes and domain events.
type ActorInfo struct {
	ID       domain.UserID
	Name     string
	RegionID domain.RegionID
	Roles    []string
}

// Actor retrieves the requesting user from the context. Returns the zero
// value when unauthenticated.
func Actor(ctx context.Context) ActorInfo {
	if actor, ok := ctx.Value(actorKey{}).(ActorInfo); ok {
		return actor
	}
	return ActorInfo{}
}

// WithActor injects the requesting user into the context.
func WithActor(ctx context.Context, actor ActorInfo) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequestID retrieves the correlation id, empty if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Now returns the request-scoped time if middleware (or a test) pinned one,
// falling back to the wall clock. Lifecycle timestamps (submittedAt,
// allocatedAt, deletedAt) must come from here so one request observes one
// instant.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time, used by middleware and by tests that need
// a deterministic clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
