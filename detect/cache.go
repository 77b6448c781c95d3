package detect

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrCacheMiss is returned by ModelCache.Get when the key is absent
var ErrCacheMiss = errors.New("model not cached")

// ModelCache stores model weights between transcriptions
type ModelCache interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Clear(ctx context.Context) error
}

// MemoryModelCache keeps weights in process memory. Safe for concurrent use.
type MemoryModelCache struct {
	mu     sync.RWMutex
	models map[string][]byte
}

// NewMemoryModelCache creates an empty in-memory cache
func NewMemoryModelCache() *MemoryModelCache {
	return &MemoryModelCache{models: make(map[string][]byte)}
}

func (c *MemoryModelCache) Has(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.models[key]
	return ok, nil
}

func (c *MemoryModelCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.models[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return slices.Clone(data), nil
}

func (c *MemoryModelCache) Put(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[key] = slices.Clone(data)
	return nil
}

func (c *MemoryModelCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.models)
	return nil
}
