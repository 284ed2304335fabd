package embedding

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/iceymoss/discovery-engine/pkg/vector"

	"github.com/go-redis/redis/v8"
)

// CacheBackend is the remote (L2) cache tier. Losing it is safe: entries are
// recomputed on demand, so implementations report unavailability as an error
// and the service degrades to memory-only operation.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// RedisBackend stores vectors in redis as little-endian float32 blobs.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: "emb:"}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]float32, bool, error) {
	blob, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vector.Deserialize(blob), true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	return b.rdb.Set(ctx, b.prefix+key, vector.Serialize(vec), ttl).Err()
}

// MemoryCache is the bounded in-process L1 tier. It is an explicit injectable
// component, not a module-level singleton, so every test can hold a fresh one.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type memEntry struct {
	key string
	vec []float32
}

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &MemoryCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*memEntry).vec, true
}

func (c *MemoryCache) Set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*memEntry).vec = vec
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&memEntry{key: key, vec: vec})
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memEntry).key)
	}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
