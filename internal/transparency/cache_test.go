package transparency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/notemarket/internal/domain"
)

type countingLookup struct {
	calls atomic.Int32
	fail  atomic.Bool
	delay time.Duration
}

func (l *countingLookup) LookupTransparency(ctx context.Context, noteID int64) (*domain.TransparencyResult, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.fail.Load() {
		return nil, &domain.LookupError{NoteID: noteID, Err: errors.New("upstream down")}
	}
	return Build(Precursor{NoteID: noteID})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(lookup Lookup) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCache(lookup, 0, WithClock(clock.Now)), clock
}

func TestCacheHitWithinTTL(t *testing.T) {
	lookup := &countingLookup{}
	cache, clock := newTestCache(lookup)
	ctx := context.Background()

	first, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	clock.Advance(4*time.Minute + 59*time.Second)
	second, err := cache.Get(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Same(t, first, second)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	lookup := &countingLookup{}
	cache, clock := newTestCache(lookup)
	ctx := context.Background()

	_, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	clock.Advance(5*time.Minute + time.Second)
	_, err = cache.Get(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, int32(2), lookup.calls.Load())
}

func TestCacheClearForcesMiss(t *testing.T) {
	lookup := &countingLookup{}
	cache, _ := newTestCache(lookup)
	ctx := context.Background()

	_, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, cache.Clear(ctx))
	assert.Equal(t, 0, cache.Len())
	_, err = cache.Get(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, int32(2), lookup.calls.Load())
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	lookup := &countingLookup{}
	lookup.fail.Store(true)
	cache, _ := newTestCache(lookup)
	ctx := context.Background()

	_, err := cache.Get(ctx, 7)
	var lookupErr *domain.LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, 0, cache.Len())

	lookup.fail.Store(false)
	result, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.NoteID)
	assert.Equal(t, int32(2), lookup.calls.Load())
}

func TestCacheKeysAreIndependent(t *testing.T) {
	lookup := &countingLookup{}
	cache, _ := newTestCache(lookup)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 1, 2, 3} {
		_, err := cache.Get(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), lookup.calls.Load())
	assert.Equal(t, 3, cache.Len())
}

func TestCacheConcurrentMissesShareLookup(t *testing.T) {
	lookup := &countingLookup{delay: 50 * time.Millisecond}
	cache, _ := newTestCache(lookup)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(ctx, 42)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), lookup.calls.Load())
}

// gatedLookup blocks until released and fails if its context was cancelled
type gatedLookup struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (l *gatedLookup) LookupTransparency(ctx context.Context, noteID int64) (*domain.TransparencyResult, error) {
	if l.calls.Add(1) == 1 {
		close(l.started)
	}
	<-l.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Build(Precursor{NoteID: noteID})
}

func TestCacheSharedLookupSurvivesCancelledCaller(t *testing.T) {
	lookup := &gatedLookup{started: make(chan struct{}), release: make(chan struct{})}
	cache, _ := newTestCache(lookup)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, 5)
		firstErr <- err
	}()
	<-lookup.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), 5)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(lookup.release)

	assert.NoError(t, <-firstErr)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestRedisCacheFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	lookup := &countingLookup{}
	cache := newRedisCache(client, RedisConfig{KeyPrefix: "test:"}, lookup)

	result, err := cache.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.NoteID)
	assert.Equal(t, "test:transparency:3", cache.key(3))
	assert.Equal(t, DefaultTTL, cache.ttl)

	lookup.fail.Store(true)
	_, err = cache.Get(context.Background(), 3)
	assert.Error(t, err)
}
