package fsinfo

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// contextHashCacheSize bounds how many directory digests getContextHash
// keeps resident at once. Directory digests are the most numerous of the
// fact caches in a large monorepo, so this is the one bounded by eviction
// rather than left to grow without limit for the lifetime of a long-running
// process.
const contextHashCacheSize = 4096

// hashCache is a bounded path -> hashFact memoization table. Unlike the
// snapshot-facing tri-state caches, nothing here is authoritative: an
// evicted entry is simply recomputed from disk (through contextHashQueue's
// coalescing) on next access, so the eviction policy only affects memory
// footprint, never correctness.
type hashCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func newHashCache(maxEntries int) *hashCache {
	return &hashCache{lru: lru.New(maxEntries)}
}

func (c *hashCache) Load(path string) (hashFact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(path)
	if !ok {
		return hashFact{}, false
	}
	return v.(hashFact), true
}

func (c *hashCache) Store(path string, fact hashFact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(path, fact)
}
