// Package ttlcache caches JSON-serializable values under namespaced keys, each
// with its own freshness window. Expiry is computed once at write time and
// checked lazily at read time. Every failure degrades to "not cached".
package ttlcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/cacheerr"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// DefaultTTL applies to keys absent from the TTL table.
const DefaultTTL = 15 * time.Minute

// Config configures a Cache.
type Config struct {
	// Name labels logs and metrics.
	Name string
	// Prefix namespaces every store key written by the cache.
	Prefix string
	// DefaultTTL is the fallback for keys without a TTLs entry.
	DefaultTTL time.Duration
	// TTLs maps a key to its default freshness window.
	TTLs map[string]time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	Logger   *slog.Logger
	Recorder metrics.CacheRecorder
}

// entry is the serialized form written to the store.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ExpiresAt int64           `json:"expiresAt"`
}

// Stats summarises the cache namespace.
type Stats struct {
	Size       int64    `json:"size"`
	Keys       []string `json:"keys"`
	LastUpdate *int64   `json:"lastUpdate"`
}

// Cache is a keyed TTL cache over a Store.
type Cache struct {
	store storage.Store
	cfg   Config
	log   *slog.Logger
	rec   metrics.CacheRecorder

	mu sync.Mutex
}

// New creates a cache writing into store under cfg.Prefix.
func New(store storage.Store, cfg Config) *Cache {
	if cfg.Name == "" {
		cfg.Name = "ttl"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ttls := make(map[string]time.Duration, len(cfg.TTLs))
	for k, v := range cfg.TTLs {
		ttls[k] = v
	}
	cfg.TTLs = ttls

	c := &Cache{store: store, cfg: cfg, log: cfg.Logger, rec: cfg.Recorder}
	if c.log == nil {
		c.log = logger.WithComponent("ttlcache")
	}
	c.log = c.log.With("cache", cfg.Name)
	if c.rec == nil {
		c.rec = metrics.NoopRecorder{}
	}
	return c
}

// Prefix returns the namespace prefix.
func (c *Cache) Prefix() string { return c.cfg.Prefix }

func (c *Cache) storeKey(key string) string { return c.cfg.Prefix + key }

func (c *Cache) nowMillis() int64 { return c.cfg.Now().UnixMilli() }

// TTLFor resolves the default freshness window for key.
func (c *Cache) TTLFor(key string) time.Duration {
	if ttl, ok := c.cfg.TTLs[key]; ok && ttl > 0 {
		return ttl
	}
	return c.cfg.DefaultTTL
}

// lookup reads and decodes the entry stored for key without judging liveness.
func (c *Cache) lookup(key string) (entry, error) {
	raw, ok, err := c.store.GetItem(c.storeKey(key))
	if err != nil {
		return entry{}, fmt.Errorf("read %q: %w", key, cacheerr.FromStore(err))
	}
	if !ok {
		return entry{}, cacheerr.ErrMiss
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return entry{}, fmt.Errorf("decode %q: %w: %v", key, cacheerr.ErrCorrupt, err)
	}
	return e, nil
}

// live returns the entry for key if it exists and has not expired.
func (c *Cache) live(key string) (entry, error) {
	e, err := c.lookup(key)
	if err != nil {
		return entry{}, err
	}
	if c.nowMillis() > e.ExpiresAt {
		return e, fmt.Errorf("%q expired at %d: %w", key, e.ExpiresAt, cacheerr.ErrStale)
	}
	return e, nil
}

// fail records a swallowed error.
func (c *Cache) fail(op, key string, err error) {
	kind := cacheerr.KindOf(err)
	switch kind {
	case cacheerr.KindMiss:
		c.rec.Miss()
		return
	case cacheerr.KindStale:
		c.rec.Stale()
		c.rec.Miss()
		c.log.Debug("cache entry expired", "op", op, "key", key)
		return
	case cacheerr.KindCorrupt:
		c.rec.Miss()
		c.log.Debug("cache entry corrupt", "op", op, "key", key, "error", err)
	default:
		c.log.Warn("cache operation failed", "op", op, "key", key, "kind", kind.String(), "error", err)
	}
	c.rec.Failed(kind.String())
}

// drop removes key from the store, logging but otherwise ignoring failures.
func (c *Cache) drop(key string) {
	if err := c.store.RemoveItem(c.storeKey(key)); err != nil {
		c.fail("remove", key, cacheerr.FromStore(err))
	}
}

// Get decodes the live value for key into v. It reports false when the key is
// absent, unreadable, or expired; expired and corrupt entries are removed.
func (c *Cache) Get(key string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.live(key)
	if err != nil {
		c.fail("get", key, err)
		switch cacheerr.KindOf(err) {
		case cacheerr.KindStale, cacheerr.KindCorrupt:
			c.drop(key)
		}
		return false
	}
	if len(e.Data) == 0 {
		c.fail("get", key, fmt.Errorf("%q has no data: %w", key, cacheerr.ErrCorrupt))
		c.drop(key)
		return false
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		// Valid entry, wrong destination type: not the entry's fault, so keep it.
		c.log.Debug("cache entry does not fit destination", "key", key, "error", err)
		c.rec.Miss()
		return false
	}
	c.rec.Hit()
	return true
}

// GetAs is Get returning a typed value.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var v T
	if !c.Get(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Set caches data under key with the key's default TTL.
func (c *Cache) Set(key string, data any) {
	c.SetWithTTL(key, data, 0)
}

// SetWithTTL caches data under key for ttl; ttl <= 0 selects the key's default.
// Failures are logged and the value is simply not cached.
func (c *Cache) SetWithTTL(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.TTLFor(key)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		c.fail("set", key, fmt.Errorf("encode %q: %w: %v", key, cacheerr.ErrStore, err))
		return
	}
	now := c.nowMillis()
	raw, err := json.Marshal(entry{Data: payload, Timestamp: now, ExpiresAt: now + ttl.Milliseconds()})
	if err != nil {
		c.fail("set", key, fmt.Errorf("encode %q: %w: %v", key, cacheerr.ErrStore, err))
		return
	}
	if err := c.store.SetItem(c.storeKey(key), string(raw)); err != nil {
		c.fail("set", key, cacheerr.FromStore(err))
	}
}

// IsExpired reports whether key is absent, unreadable, or past its expiry.
// Unlike Get it never modifies the store.
func (c *Cache) IsExpired(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.live(key)
	return err != nil
}

// Timestamp returns the write time (ms since epoch) of the entry for key.
func (c *Cache) Timestamp(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key)
	if err != nil {
		return 0, false
	}
	return e.Timestamp, true
}

// Expiration returns the expiry time (ms since epoch) of the entry for key.
func (c *Cache) Expiration(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookup(key)
	if err != nil {
		return 0, false
	}
	return e.ExpiresAt, true
}

// Clear removes key, or every key in the namespace when key is empty.
func (c *Cache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key != "" {
		c.drop(key)
		return
	}
	keys, err := storage.KeysWithPrefix(c.store, c.cfg.Prefix)
	if err != nil {
		c.fail("clear", "", cacheerr.FromStore(err))
		return
	}
	for _, k := range keys {
		c.drop(strings.TrimPrefix(k, c.cfg.Prefix))
	}
}

// Stats enumerates the namespace, summing serialized sizes and finding the
// most recent write. Store failures yield empty stats.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Keys: []string{}}
	keys, err := storage.KeysWithPrefix(c.store, c.cfg.Prefix)
	if err != nil {
		c.fail("stats", "", cacheerr.FromStore(err))
		return stats
	}
	for _, k := range keys {
		raw, ok, err := c.store.GetItem(k)
		if err != nil {
			c.fail("stats", k, cacheerr.FromStore(err))
			return Stats{Keys: []string{}}
		}
		stats.Keys = append(stats.Keys, strings.TrimPrefix(k, c.cfg.Prefix))
		if !ok {
			continue
		}
		stats.Size += storage.Sizeof(raw)
		var e entry
		if json.Unmarshal([]byte(raw), &e) != nil {
			continue
		}
		if stats.LastUpdate == nil || e.Timestamp > *stats.LastUpdate {
			ts := e.Timestamp
			stats.LastUpdate = &ts
		}
	}
	c.rec.Observe(len(stats.Keys), stats.Size)
	return stats
}
