package events

import (
	"context"
	"sync"
)

// InMemoryStore keeps emitted events in a slice for tests and dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// All returns a snapshot of emitted events in emission order.
func (s *InMemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfKind filters the snapshot by kind.
func (s *InMemoryStore) OfKind(kind Kind) []Event {
	var out []Event
	for _, e := range s.All() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
