package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New().WithClock(clock.Now), clock
}

func TestGetOrCompute_CachesWithinTTL(t *testing.T) {
	c, clock := newTestCache()
	calls := 0
	fn := func() (any, error) {
		calls++
		return calls, nil
	}

	v, hit, err := c.GetOrCompute("k", 5*time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, v)

	clock.Advance(4 * time.Minute)
	v, hit, err = c.GetOrCompute("k", 5*time.Minute, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v)

	clock.Advance(time.Minute)
	v, hit, err = c.GetOrCompute("k", 5*time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit, "entry should expire at ttl")
	assert.Equal(t, 2, v)
}

func TestGetOrCompute_ErrorsNotCached(t *testing.T) {
	c, _ := newTestCache()
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute("k", time.Minute, func() (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.GetOrCompute("k", time.Minute, func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestGetOrCompute_NoStore(t *testing.T) {
	c, _ := newTestCache()
	calls := 0
	fn := func() (any, error) {
		calls++
		return NoStore("partial"), nil
	}

	v, _, err := c.GetOrCompute("k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "partial", v)

	_, hit, err := c.GetOrCompute("k", time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}

func TestGetOrCompute_SharesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute("k", time.Minute, func() (any, error) {
				calls.Add(1)
				<-release
				return "value", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}

func TestInvalidateAndPurge(t *testing.T) {
	c, _ := newTestCache()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("zero", 3, 0)

	assert.Equal(t, 2, c.Len())

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
