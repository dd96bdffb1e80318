package index

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache stores embeddings by content key. Implementations return only the keys they hold.
type Cache interface {
	Get(ctx context.Context, keys []string) (map[string][]float32, error)
	Put(ctx context.Context, entries map[string][]float32) error
}

// Key derives the cache key of a chunk. Any change to the text or the
// embedding model yields a different key.
func Key(embedder, content string) string {
	h := sha256.New()
	h.Write([]byte(embedder))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a bounded LRU cache local to the process.
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type memoryEntry struct {
	key string
	vec []float32
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryCache{
		max:     maxEntries,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(_ context.Context, keys []string) (map[string][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]float32)
	for _, k := range keys {
		if el, ok := c.entries[k]; ok {
			c.order.MoveToFront(el)
			out[k] = el.Value.(*memoryEntry).vec
		}
	}
	return out, nil
}

func (c *MemoryCache) Put(_ context.Context, entries map[string][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range entries {
		if el, ok := c.entries[k]; ok {
			el.Value.(*memoryEntry).vec = v
			c.order.MoveToFront(el)
			continue
		}
		c.entries[k] = c.order.PushFront(&memoryEntry{key: k, vec: v})
		for c.order.Len() > c.max {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryEntry).key)
		}
	}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
