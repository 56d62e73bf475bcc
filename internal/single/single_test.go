package single

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_ResolveFirstWriterWins(t *testing.T) {
	slot := New[int]()

	assert.True(t, slot.Resolve(1))
	assert.False(t, slot.Resolve(2))

	v, ok := slot.TryGet()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestSlot_TryGetUnresolved(t *testing.T) {
	slot := New[string]()

	v, ok := slot.TryGet()
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSlot_WaitBlocksUntilResolved(t *testing.T) {
	slot := New[string]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		slot.Resolve("ready")
	}()

	v, err := slot.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}

func TestSlot_WaitHonorsContext(t *testing.T) {
	slot := New[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := slot.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlot_ConcurrentResolvers(t *testing.T) {
	slot := New[int]()

	const racers = 32
	var wg sync.WaitGroup
	winners := make(chan int, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if slot.Resolve(i) {
				winners <- i
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var won []int
	for w := range winners {
		won = append(won, w)
	}
	require.Len(t, won, 1, "exactly one resolver must win")

	v, ok := slot.TryGet()
	require.True(t, ok)
	assert.Equal(t, won[0], v)
}

func TestSlot_DoneClosesOnResolve(t *testing.T) {
	slot := New[error]()

	select {
	case <-slot.Done():
		t.Fatal("done channel closed before resolution")
	default:
	}

	slot.Resolve(nil)

	select {
	case <-slot.Done():
	default:
		t.Fatal("done channel not closed after resolution")
	}
}
