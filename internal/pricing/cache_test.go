package pricing

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls int32
	delay time.Duration
}

func (l *countingLoader) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return BuildSnapshot(BuildInput{Now: time.Now()}), nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	loader := &countingLoader{}
	clock := testNow
	cache := NewCache(loader, time.Minute, func() time.Time { return clock })

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	clock = clock.Add(59 * time.Second)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls))
}

func TestCacheReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{}
	clock := testNow
	cache := NewCache(loader, time.Minute, func() time.Time { return clock })

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	clock = clock.Add(61 * time.Second)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, atomic.LoadInt32(&loader.calls))
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(loader, time.Minute, func() time.Time { return testNow })

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&loader.calls))
}

func TestCacheSingleFlight(t *testing.T) {
	loader := &countingLoader{delay: 20 * time.Millisecond}
	cache := NewCache(loader, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls), "concurrent misses must share one load")
}
