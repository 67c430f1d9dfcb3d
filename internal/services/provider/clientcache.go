package provider

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// clientCache memoizes constructed providers. singleflight collapses
// concurrent construction for the same key into one SDK client.
type clientCache struct {
	mu      sync.RWMutex
	entries map[string]Provider
	group   singleflight.Group
}

func newClientCache() *clientCache {
	return &clientCache{entries: make(map[string]Provider)}
}

func (c *clientCache) getOrCreate(key string, build func() (Provider, error)) (Provider, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		p, err := build()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(Provider), nil
}
