package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameAggregate(t *testing.T) {
	km := NewKeyedMutex()
	id := uuid.New()
	ctx := context.Background()

	release, err := km.Acquire(ctx, id)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := km.Acquire(ctx, id)
		if err == nil {
			close(acquired)
			r2()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked after release")
	}
}

func TestKeyedMutex_DifferentAggregatesProceedInParallel(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	defer release()

	done := make(chan struct{})
	go func() {
		r2, err := km.Acquire(ctx, uuid.New())
		require.NoError(t, err)
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated aggregate blocked behind a held lock")
	}
}

func TestKeyedMutex_ReleaseIsIdempotentAndEntriesDrain(t *testing.T) {
	km := NewKeyedMutex()
	id := uuid.New()

	release, err := km.Acquire(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, km.Held())

	release()
	release() // second call must be a no-op
	assert.Equal(t, 0, km.Held())
}

func TestKeyedMutex_CancelledContextFailsFast(t *testing.T) {
	km := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := km.Acquire(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

// Hammer many goroutines at one aggregate and count overlapping critical
// sections; any overlap is a serialization failure.
func TestKeyedMutex_NoOverlapUnderContention(t *testing.T) {
	km := NewKeyedMutex()
	id := uuid.New()

	var inside int32
	var mu sync.Mutex
	overlaps := 0

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(context.Background(), id)
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > 1 {
				overlaps++
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps)
	assert.Zero(t, km.Held())
}
