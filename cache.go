package iap

import (
	"sync"
	"time"

	"github.com/xraph/iap/native"
)

// nativeCache keeps recently processed native purchases so Consume can
// finish them later. Expired entries are swept lazily on write; when the
// cache is full the oldest entry is evicted.
type nativeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	size    int
	now     func() time.Time
	entries map[string]cachedPurchase
}

type cachedPurchase struct {
	purchase native.Purchase
	stored   time.Time
}

func newNativeCache(ttl time.Duration, size int, now func() time.Time) *nativeCache {
	return &nativeCache{
		ttl:     ttl,
		size:    size,
		now:     now,
		entries: make(map[string]cachedPurchase),
	}
}

func (c *nativeCache) put(p native.Purchase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := p.Key()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.size {
		c.sweep(now)
		if len(c.entries) >= c.size {
			c.evictOldest()
		}
	}
	c.entries[key] = cachedPurchase{purchase: p, stored: now}
}

// get returns the purchase cached under key if it has not expired.
func (c *nativeCache) get(key string) (native.Purchase, bool) {
	if key == "" {
		return native.Purchase{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return native.Purchase{}, false
	}
	if c.now().Sub(e.stored) > c.ttl {
		delete(c.entries, key)
		return native.Purchase{}, false
	}
	return e.purchase, true
}

func (c *nativeCache) remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *nativeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *nativeCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.stored) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *nativeCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.stored.Before(oldest) {
			oldestKey, oldest = k, e.stored
		}
	}
	delete(c.entries, oldestKey)
}
