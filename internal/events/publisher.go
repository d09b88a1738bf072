package events

import (
	"context"
	"time"
)

// Store persists emitted events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher records domain events. It is fire-and-forget from the services'
// perspective: delivery beyond the store (outbox relay, webhooks) is the
// sink's responsibility.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
