// Package locks serializes read-modify-write sequences per aggregate id.
// Every lifecycle path that loads an application or assessment and writes it
// back acquires the aggregate's lock first, so a concurrent caller observes
// either the fully-applied prior transition or blocks. Pure read paths skip
// the coordinator.
package locks

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Coordinator hands out exclusive per-aggregate locks. Acquire blocks until
// the lock is free or ctx is done; the returned release function ends the
// critical section. Implementations scoped to a database transaction may
// return a no-op release and rely on transaction end instead.
type Coordinator interface {
	Acquire(ctx context.Context, aggregateID uuid.UUID) (release func(), err error)
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex is the in-process Coordinator: one mutex per aggregate id,
// created on demand and dropped once the last holder releases.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[uuid.UUID]*entry)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, aggregateID uuid.UUID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	e, ok := k.entries[aggregateID]
	if !ok {
		e = &entry{}
		k.entries[aggregateID] = e
	}
	e.refs++
	k.mu.Unlock()

	// Blocks with no timeout at this layer; the surrounding request deadline
	// is the backstop.
	e.mu.Lock()

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, aggregateID)
		}
		k.mu.Unlock()
	}
	return release, nil
}

// Held reports how many aggregate locks currently have holders or waiters.
// Test hook for leak detection.
func (k *KeyedMutex) Held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
