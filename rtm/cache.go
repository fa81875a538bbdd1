package rtm

import (
	"context"
	"hash/maphash"
	"sync"
)

// ChangeCache remembers the last serialized value seen per (target, item key).
type ChangeCache interface {
	// CheckAndUpdate reports whether value differs from the cached one (or
	// nothing is cached yet) and, if so, stores it. The read and the write are
	// atomic for a single target and key.
	CheckAndUpdate(ctx context.Context, target, key, value string) (bool, error)
	// Clear drops every entry cached for target.
	Clear(ctx context.Context, target string) error
}

// MemoryCache is the in-process ChangeCache. Targets are sharded so that
// unrelated channels never contend on the same lock.
type MemoryCache struct {
	seed   maphash.Seed
	shards []cacheShard
}

type cacheShard struct {
	mu      sync.Mutex
	targets map[string]map[string]string
}

var _ ChangeCache = (*MemoryCache)(nil)

func NewMemoryCache(shards int) *MemoryCache {
	if shards <= 0 {
		shards = DefaultShardCount
	}
	c := &MemoryCache{
		seed:   maphash.MakeSeed(),
		shards: make([]cacheShard, shards),
	}
	for i := range c.shards {
		c.shards[i].targets = make(map[string]map[string]string)
	}
	return c
}

func (c *MemoryCache) CheckAndUpdate(_ context.Context, target, key, value string) (bool, error) {
	s := c.shard(target)

	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.targets[target]
	if !ok {
		items = make(map[string]string)
		s.targets[target] = items
	}
	if prev, seen := items[key]; seen && prev == value {
		return false, nil
	}
	items[key] = value
	return true, nil
}

func (c *MemoryCache) Clear(_ context.Context, target string) error {
	s := c.shard(target)

	s.mu.Lock()
	delete(s.targets, target)
	s.mu.Unlock()
	return nil
}

// Lookup returns the cached value for target and key.
func (c *MemoryCache) Lookup(target, key string) (string, bool) {
	s := c.shard(target)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.targets[target][key]
	return v, ok
}

func (c *MemoryCache) shard(target string) *cacheShard {
	return &c.shards[maphash.String(c.seed, target)%uint64(len(c.shards))]
}
