package pseudonym

import (
	"container/list"
	"sync"
)

// fifoCache is a size-bounded map evicting the oldest insertion first. All
// access, including eviction, goes through one mutex.
type fifoCache struct {
	mu      sync.Mutex
	limit   int
	entries map[string]string
	order   *list.List
}

func newFIFOCache(limit int) *fifoCache {
	return &fifoCache{
		limit:   limit,
		entries: make(map[string]string),
		order:   list.New(),
	}
}

func (c *fifoCache) get(key string) (string, bool) {
	if c == nil || c.limit <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fifoCache) put(key, value string) {
	if c == nil || c.limit <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	for c.order.Len() >= c.limit {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}
	c.entries[key] = value
	c.order.PushBack(key)
}

func (c *fifoCache) purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.order.Init()
	c.mu.Unlock()
}

func (c *fifoCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
