package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/tsijukebox/jukebox-backend/internal/config"
)

// LRUCache is a size-bounded cache backed by ristretto.
type LRUCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
	now        func() time.Time
}

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// NewLRU creates a cache bounded to maxSizeMB megabytes. maxEntries sizes
// ristretto's admission counters.
func NewLRU(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*LRUCache, error) {
	// ristretto wants roughly ten counters per expected entry
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	maxCost := maxSizeMB * 1024 * 1024
	if maxCost <= 0 {
		maxCost = 1 << 20
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: rc, defaultTTL: defaultTTL, now: time.Now}, nil
}

// NewFromConfig builds the response cache from RESPONSE_CACHE_* settings.
func NewFromConfig(cfg *config.Config) (*LRUCache, error) {
	return NewLRU(cfg.ResponseCacheMaxMB, cfg.ResponseCacheMaxEntries, cfg.ResponseCacheTTL)
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	item, ok := val.(*cacheItem)
	if !ok {
		c.cache.Del(key)
		return nil, false
	}
	if c.now().After(item.expiresAt) {
		c.cache.Del(key)
		return nil, false
	}
	return item.data, true
}

func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	item := &cacheItem{data: value, expiresAt: c.now().Add(ttl)}

	// Rejected sets are fine; ristretto's admission policy decides.
	_ = c.cache.Set(key, item, int64(len(value)))
	c.cache.Wait()
}

func (c *LRUCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *LRUCache) Clear() {
	c.cache.Clear()
}

func (c *LRUCache) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close stops ristretto's background goroutines.
func (c *LRUCache) Close() {
	c.cache.Close()
}
