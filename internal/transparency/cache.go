package transparency

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pbaille/notemarket/internal/domain"
)

// DefaultTTL is how long a transparency result stays fresh
const DefaultTTL = 5 * time.Minute

// Lookup resolves transparency data for a note from the backing collaborators
type Lookup interface {
	LookupTransparency(ctx context.Context, noteID int64) (*domain.TransparencyResult, error)
}

// LookupFunc adapts a function to Lookup
type LookupFunc func(ctx context.Context, noteID int64) (*domain.TransparencyResult, error)

func (f LookupFunc) LookupTransparency(ctx context.Context, noteID int64) (*domain.TransparencyResult, error) {
	return f(ctx, noteID)
}

// Getter is the cached read path used by handlers
type Getter interface {
	Get(ctx context.Context, noteID int64) (*domain.TransparencyResult, error)
	Clear(ctx context.Context) error
}

type entry struct {
	data      *domain.TransparencyResult
	timestamp time.Time
}

// Cache is an in-memory read-through cache in front of a Lookup. Entries
// expire after the TTL; there is no size bound.
type Cache struct {
	lookup Lookup
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[int64]entry
	group   singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache. A non-positive ttl selects DefaultTTL.
func NewCache(lookup Lookup, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		lookup:  lookup,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a fresh cached result or performs the lookup. Failed lookups
// are not cached; the next call retries.
func (c *Cache) Get(ctx context.Context, noteID int64) (*domain.TransparencyResult, error) {
	if data, ok := c.fresh(noteID); ok {
		return data, nil
	}

	// Concurrent misses for the same note share one lookup, which ignores
	// caller cancellation. The lock is not held while it runs.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(strconv.FormatInt(noteID, 10), func() (interface{}, error) {
		if data, ok := c.fresh(noteID); ok {
			return data, nil
		}
		data, err := c.lookup.LookupTransparency(shared, noteID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[noteID] = entry{data: data, timestamp: c.now()}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TransparencyResult), nil
}

func (c *Cache) fresh(noteID int64) (*domain.TransparencyResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[noteID]
	if !ok || c.now().Sub(e.timestamp) >= c.ttl {
		return nil, false
	}
	return e.data, true
}

// Clear drops every entry
func (c *Cache) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[int64]entry)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
