package marketdata

import "sync"

// MemoryCache is the volatile process-local bar cache, shared across
// concurrent requests. Writers replace a symbol's series wholesale under the
// lock, so readers never observe a partially merged series.
type MemoryCache struct {
	mu     sync.RWMutex
	series map[string][]Bar
}

// NewMemoryCache creates an empty process-local cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{series: make(map[string][]Bar)}
}

// Get returns the cached series for a symbol, or nil. The returned slice
// must not be mutated; Replace installs a fresh slice on every write.
func (c *MemoryCache) Get(symbol string) []Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.series[symbol]
}

// Replace atomically swaps in a new series for a symbol.
func (c *MemoryCache) Replace(symbol string, bars []Bar) {
	if len(bars) == 0 {
		return
	}
	c.mu.Lock()
	c.series[symbol] = bars
	c.mu.Unlock()
}

// Len reports the number of cached symbols.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}
