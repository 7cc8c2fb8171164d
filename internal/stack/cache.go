package stack

import "sync"

// cache memoizes parsed stacks per path string. Concurrent misses on the
// same path converge on one computation; the losers wait for the winner.
// Failed parses leave no entry behind, so a later call retries.
type cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	done  chan struct{}
	stack *Stack
	err   error
}

func newCache() *cache {
	return &cache{entries: make(map[string]*cacheEntry)}
}

// get returns the cached stack for path, computing it via build on the first
// call. fresh reports whether this call performed the computation.
func (c *cache) get(path string, build func(string) (*Stack, error)) (st *Stack, err error, fresh bool) {
	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		c.mu.Unlock()
		<-e.done
		return e.stack, e.err, false
	}
	e := &cacheEntry{done: make(chan struct{})}
	c.entries[path] = e
	c.mu.Unlock()

	e.stack, e.err = build(path)
	if e.err != nil {
		// Drop the entry before releasing waiters: the cache stays
		// untouched for failed keys.
		c.mu.Lock()
		delete(c.entries, path)
		c.mu.Unlock()
	}
	close(e.done)
	return e.stack, e.err, e.err == nil
}
