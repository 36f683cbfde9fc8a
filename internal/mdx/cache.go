package mdx

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

type CacheStats struct {
	Hits   int
	Misses int
}

// CompileCache memoizes successful compiles by markup digest.
type CompileCache struct {
	mu      sync.Mutex
	entries map[uint64]string
	stats   CacheStats
}

func NewCompileCache() *CompileCache {
	return &CompileCache{entries: make(map[uint64]string)}
}

func (c *CompileCache) Get(markup []byte) (string, bool) {
	key := xxhash.Sum64(markup)
	c.mu.Lock()
	defer c.mu.Unlock()
	code, ok := c.entries[key]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return code, ok
}

func (c *CompileCache) Put(markup []byte, code string) {
	key := xxhash.Sum64(markup)
	c.mu.Lock()
	c.entries[key] = code
	c.mu.Unlock()
}

func (c *CompileCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *CompileCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[uint64]string)
	c.stats = CacheStats{}
	c.mu.Unlock()
}
