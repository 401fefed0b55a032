package cache

import (
	"sync"
)

// PayloadCache defines a generic interface for caching encoded suite
// payloads keyed by their wire format.
type PayloadCache interface {
	// Get retrieves a payload from the cache.
	Get(key string) ([]byte, bool)
	// Put stores a payload in the cache.
	Put(key string, payload []byte)
	// Fill returns the cached payload for key, computing and storing
	// it first when absent.
	Fill(key string, compute func() ([]byte, error)) ([]byte, error)
	// Size returns the number of items in the cache.
	Size() int
}

// MapCache is a simple in-memory implementation of PayloadCache.
type MapCache struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewMapCache() *MapCache {
	return &MapCache{
		data: make(map[string][]byte),
	}
}

func (c *MapCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Return copy to avoid modification of cached payload
	if p, ok := c.data[key]; ok {
		dst := make([]byte, len(p))
		copy(dst, p)
		return dst, true
	}
	return nil, false
}

func (c *MapCache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Store copy
	dst := make([]byte, len(payload))
	copy(dst, payload)
	c.data[key] = dst
}

// Fill computes outside the lock. Concurrent fills for the same key may
// compute twice; last write wins, which is harmless for idempotent
// encoders.
func (c *MapCache) Fill(key string, compute func() ([]byte, error)) ([]byte, error) {
	if p, ok := c.Get(key); ok {
		return p, nil
	}
	p, err := compute()
	if err != nil {
		return nil, err
	}
	c.Put(key, p)
	return p, nil
}

func (c *MapCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
