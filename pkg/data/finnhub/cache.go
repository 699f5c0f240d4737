package finnhub

import (
	"sync"
	"time"
)

type cacheEntry struct {
	v   any
	exp time.Time
}

// ttlCache memoizes API responses for their TTL. Financial statements move
// slowly; a batch run should never fetch the same symbol twice.
type ttlCache struct {
	mu sync.RWMutex
	m  map[string]cacheEntry
}

func newTTLCache() *ttlCache {
	return &ttlCache{m: make(map[string]cacheEntry)}
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

func (c *ttlCache) set(key string, v any, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = cacheEntry{v: v, exp: exp}
	c.mu.Unlock()
}
