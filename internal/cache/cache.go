package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Class buckets cached values by entity kind; each class carries its own
// TTL (bid lists are very short-lived, roster data longer-lived).
type Class string

const (
	ClassAuction       Class = "auction"
	ClassTeams         Class = "teams"
	ClassQueue         Class = "queue"
	ClassBids          Class = "bids"
	ClassCurrentPlayer Class = "current"
)

// TTLs maps key classes to their expiry windows.
type TTLs map[Class]time.Duration

// DefaultTTLs bounds staleness per class. Anything not listed falls back
// to the auction TTL.
func DefaultTTLs() TTLs {
	return TTLs{
		ClassAuction:       30 * time.Second,
		ClassTeams:         60 * time.Second,
		ClassQueue:         30 * time.Second,
		ClassBids:          2 * time.Second,
		ClassCurrentPlayer: 2 * time.Second,
	}
}

// Key builds the composite (class, scope, id) cache key.
func Key(class Class, auctionID uuid.UUID, parts ...string) string {
	key := fmt.Sprintf("%s:%s", class, auctionID)
	if len(parts) > 0 {
		key += ":" + strings.Join(parts, ":")
	}
	return key
}

// ScopePrefix is the invalidation prefix covering every key of a class
// within one auction.
func ScopePrefix(class Class, auctionID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", class, auctionID)
}

// Cache is a read-through TTL cache for hot read paths. It is never
// consulted for fund or authorization decisions; disabling it changes
// latency, not correctness.
type Cache struct {
	inner   *ttlcache.Cache[string, any]
	ttls    TTLs
	enabled bool
}

// New builds an enabled cache with the given per-class TTLs.
func New(ttls TTLs) *Cache {
	return &Cache{
		inner: ttlcache.New[string, any](
			ttlcache.WithDisableTouchOnHit[string, any](),
		),
		ttls:    ttls,
		enabled: true,
	}
}

// NewDisabled builds a cache that always misses. Used to verify that
// correctness never depends on cached reads.
func NewDisabled() *Cache {
	c := New(DefaultTTLs())
	c.enabled = false
	return c
}

// Start runs the background expiry loop until Stop is called.
func (c *Cache) Start() { go c.inner.Start() }

// Stop terminates the expiry loop.
func (c *Cache) Stop() { c.inner.Stop() }

func (c *Cache) ttlFor(class Class) time.Duration {
	if d, ok := c.ttls[class]; ok {
		return d
	}
	return c.ttls[ClassAuction]
}

// Get returns the cached value if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}
	item := c.inner.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// Set stores a value under the class TTL.
func (c *Cache) Set(key string, class Class, value any) {
	if !c.enabled {
		return
	}
	c.inner.Set(key, value, c.ttlFor(class))
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...string) {
	for _, key := range keys {
		c.inner.Delete(key)
	}
}

// InvalidatePattern drops every key with the given prefix. A prefix that
// matches nothing is a no-op.
func (c *Cache) InvalidatePattern(prefix string) {
	var matched []string
	c.inner.Range(func(item *ttlcache.Item[string, any]) bool {
		if strings.HasPrefix(item.Key(), prefix) {
			matched = append(matched, item.Key())
		}
		return true
	})
	for _, key := range matched {
		c.inner.Delete(key)
	}
}

// GetOrLoad reads through the cache: on a miss the loader recomputes the
// value from the authoritative store and the result is cached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, class Class, loader func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	value, err := loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, class, value)
	return value, nil
}
