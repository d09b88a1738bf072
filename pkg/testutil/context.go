package testutil

import (
	"context"
	"time"

	"casework/pkg/domain"
	"casework/pkg/requestcontext"
)

// FixedClock is the instant suite tests pin as the request time.
var FixedClock = time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC)

// Ctx returns a context carrying a deterministic clock and the given actor,
// matching what the request middleware provides in production.
func Ctx(actor requestcontext.ActorInfo) context.Context {
	ctx := requestcontext.WithTime(context.Background(), FixedClock)
	return requestcontext.WithActor(ctx, actor)
}

// ActorWithRoles builds a request actor with a fresh id and the given roles.
func ActorWithRoles(name string, roles ...string) requestcontext.ActorInfo {
	return requestcontext.ActorInfo{ID: domain.NewUserID(), Name: name, Roles: roles}
}
