// Package cache implements the bounded token validation cache that
// short-circuits repeated validations of the same credential.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
)

// entry is one cached validation outcome. The effective expiry is the
// earlier of the token's own expiry and the cache TTL, so a revoked or
// short-lived token never outlives either bound.
type entry struct {
	key       string
	user      *models.UserContext
	expiresAt time.Time
}

// TokenCache is a fixed-capacity cache of positive validation results
// keyed by token fingerprint. Eviction is strictly insertion-order:
// hits do not refresh an entry's position, so a hot token still ages
// out and gets revalidated against the authority.
type TokenCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element
	metrics  *monitoring.Metrics

	// now is swapped in tests to control the clock.
	now func() time.Time
}

// NewTokenCache builds a cache with the given capacity and TTL. Both
// must be positive; config validation enforces that before wiring.
func NewTokenCache(capacity int, ttl time.Duration, metrics *monitoring.Metrics) *TokenCache {
	return &TokenCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		metrics:  metrics,
		now:      time.Now,
	}
}

// fingerprint derives the cache key. Raw tokens are never stored, so a
// memory dump of the cache yields no replayable credentials.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached identity for the token, or nil on miss. Every
// lookup first sweeps expired entries so an expired result is never
// served and capacity is reclaimed without a background goroutine.
func (c *TokenCache) Get(token string) *models.UserContext {
	key := fingerprint(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	el, ok := c.entries[key]
	if !ok {
		c.metrics.CacheMiss()
		return nil
	}
	c.metrics.CacheHit()
	return el.Value.(*entry).user
}

// Put stores a positive validation result. tokenExpiresAt bounds the
// entry's life together with the TTL. When the cache is full the
// oldest entry is evicted and the new one inserted under the same lock
// acquisition, so the cache never exceeds capacity even transiently.
func (c *TokenCache) Put(token string, user *models.UserContext, tokenExpiresAt time.Time) {
	key := fingerprint(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(c.ttl)
	if !tokenExpiresAt.IsZero() && tokenExpiresAt.Before(expiresAt) {
		expiresAt = tokenExpiresAt
	}
	if !expiresAt.After(now) {
		// Already expired; nothing worth caching.
		return
	}

	if el, ok := c.entries[key]; ok {
		// Re-inserting an existing token updates the payload in place
		// without refreshing its queue position.
		e := el.Value.(*entry)
		e.user = user
		e.expiresAt = expiresAt
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldestLocked()
	}

	el := c.order.PushBack(&entry{key: key, user: user, expiresAt: expiresAt})
	c.entries[key] = el
	c.metrics.SetCacheSize(c.order.Len())
}

// Invalidate drops the entry for the token, if present. Used on logout
// so a surrendered credential stops validating immediately.
func (c *TokenCache) Invalidate(token string) {
	key := fingerprint(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Purge empties the cache.
func (c *TokenCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.metrics.SetCacheSize(0)
}

// Len returns the current entry count.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *TokenCache) sweepLocked() {
	now := c.now()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).expiresAt.After(now) {
			el = next
			continue
		}
		c.removeLocked(el)
		el = next
	}
}

func (c *TokenCache) evictOldestLocked() {
	if el := c.order.Front(); el != nil {
		c.removeLocked(el)
		c.metrics.CacheEviction()
	}
}

func (c *TokenCache) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
	c.metrics.SetCacheSize(c.order.Len())
}
