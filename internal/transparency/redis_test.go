package transparency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisCache(t *testing.T, lookup Lookup) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisCache(client, RedisConfig{KeyPrefix: "nm:", TTL: 2 * time.Minute}, lookup), mr
}

func TestRedisCacheServesHitWithoutLookup(t *testing.T) {
	lookup := &countingLookup{}
	cache, mr := newMiniredisCache(t, lookup)
	ctx := context.Background()

	first, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	second, err := cache.Get(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, int32(1), lookup.calls.Load())
	assert.Equal(t, first.NoteID, second.NoteID)
	assert.Equal(t, first.BuyerMessage, second.BuyerMessage)
	assert.True(t, mr.Exists("nm:transparency:1"))

	// a failing upstream does not matter while the entry is cached
	lookup.fail.Store(true)
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), lookup.calls.Load())
}

func TestRedisCacheSetsConfiguredTTL(t *testing.T) {
	lookup := &countingLookup{}
	cache, mr := newMiniredisCache(t, lookup)
	ctx := context.Background()

	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, mr.TTL("nm:transparency:1"))

	mr.FastForward(2*time.Minute + time.Second)
	assert.False(t, mr.Exists("nm:transparency:1"))
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lookup.calls.Load())
}

func TestRedisCacheReplacesUndecodableEntry(t *testing.T) {
	lookup := &countingLookup{}
	cache, mr := newMiniredisCache(t, lookup)

	require.NoError(t, mr.Set("nm:transparency:4", "{not json"))
	result, err := cache.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.NoteID)
	assert.Equal(t, int32(1), lookup.calls.Load())

	raw, err := mr.Get("nm:transparency:4")
	require.NoError(t, err)
	assert.Contains(t, raw, `"note_id":4`)
}

func TestRedisCacheClearKeepsOtherKeys(t *testing.T) {
	lookup := &countingLookup{}
	cache, mr := newMiniredisCache(t, lookup)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		_, err := cache.Get(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("nm:session", "keep"))
	require.NoError(t, mr.Set("other:transparency:1", "keep"))

	require.NoError(t, cache.Clear(ctx))

	for _, key := range []string{"nm:transparency:1", "nm:transparency:2", "nm:transparency:3"} {
		assert.False(t, mr.Exists(key), key)
	}
	assert.True(t, mr.Exists("nm:session"))
	assert.True(t, mr.Exists("other:transparency:1"))

	// clearing an empty keyspace is a no-op
	require.NoError(t, cache.Clear(ctx))
}
