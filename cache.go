package solarroof

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"sync"
)

type CacheKey struct {
	key string
}

// MakeCacheKey hashes the gob encoding of args. Every arg must be
// gob-encodable.
func MakeCacheKey(args ...any) *CacheKey {
	h := sha256.New()

	enc := gob.NewEncoder(h)
	for _, arg := range args {
		if err := enc.Encode(arg); err != nil {
			panic("error encoding cache key: " + err.Error())
		}
	}

	return &CacheKey{hex.EncodeToString(h.Sum(nil))}
}

func (ck *CacheKey) String() string {
	return ck.key
}

// layoutCache memoizes face layouts by a hash of everything that
// determines them. It is safe for concurrent use.
type layoutCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]LayoutResult
}

func newLayoutCache(max int) *layoutCache {
	return &layoutCache{max: max, entries: make(map[string]LayoutResult)}
}

func (c *layoutCache) Load(ck *CacheKey) (LayoutResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[ck.key]
	if !ok {
		return LayoutResult{}, false
	}
	return r.clone(), true
}

func (c *layoutCache) Save(ck *CacheKey, r LayoutResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		clear(c.entries)
	}
	c.entries[ck.key] = r.clone()
}

func (c *layoutCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
