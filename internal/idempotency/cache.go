package idempotency

import (
	"sync"
)

// Result is the cached outcome of a mutating command: the HTTP status and
// the exact response body, replayed verbatim.
type Result struct {
	StatusCode int
	Body       []byte
}

func (r Result) success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Cache deduplicates mutating commands by (client key, operation identity).
// Entries are write-once and never expire within the process lifetime.
//
// Concurrent callers sharing a key are serialized per (key, operation) so
// the underlying execution happens at most once; losers receive the
// winner's result flagged as a replay. A plain check-then-write around the
// map would race here.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Result
	inflight map[string]*sync.Mutex
}

func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string]Result),
		inflight: make(map[string]*sync.Mutex),
	}
}

// Execute runs fn under the idempotency contract. An empty key always
// re-executes. Only successful (2xx) results are cached; a failed fn leaves
// no trace so the caller may retry. The bool reports whether the result was
// replayed from cache.
func (c *Cache) Execute(key, operation string, fn func() (Result, error)) (Result, bool, error) {
	if key == "" {
		res, err := fn()
		return res, false, err
	}

	cacheKey := key + "\x00" + operation
	flight := c.flightLock(cacheKey)
	flight.Lock()
	defer flight.Unlock()

	c.mu.Lock()
	cached, ok := c.entries[cacheKey]
	c.mu.Unlock()
	if ok {
		return cached, true, nil
	}

	res, err := fn()
	if err != nil {
		return res, false, err
	}
	if res.success() {
		c.mu.Lock()
		c.entries[cacheKey] = res
		c.mu.Unlock()
	}
	return res, false, nil
}

func (c *Cache) flightLock(cacheKey string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.inflight[cacheKey]
	if !ok {
		lock = &sync.Mutex{}
		c.inflight[cacheKey] = lock
	}
	return lock
}
