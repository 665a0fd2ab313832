// Package contentcache stores one class of payload under keys derived from a
// pair of free-text identifiers. A side index tracks every key written so the
// namespace can be enumerated, cleared and evicted in oldest-first batches.
package contentcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/cacheerr"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
	"github.com/tsijukebox/jukebox-backend/internal/utils"
)

// Defaults used when the corresponding Config field is zero.
const (
	DefaultPrefix        = "lyrics_cache_"
	DefaultVersion       = 1
	DefaultMaxEntries    = 100
	DefaultTTL           = 7 * 24 * time.Hour
	DefaultEvictFraction = 0.2
)

// Config configures a Cache.
type Config struct {
	Name          string
	Prefix        string
	IndexKey      string // defaults to Prefix + "index"
	Version       int
	MaxEntries    int
	TTL           time.Duration
	EvictFraction float64
	Now           func() time.Time

	Logger   *slog.Logger
	Recorder metrics.CacheRecorder
}

type entry[P any] struct {
	Data     P     `json:"data"`
	CachedAt int64 `json:"cachedAt"`
	Version  int   `json:"version"`
}

// header is the part of an entry the eviction scan needs.
type header struct {
	CachedAt int64 `json:"cachedAt"`
}

// Stats summarises the indexed entries.
type Stats struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"sizeBytes"`
}

// Cache is a content-addressed cache of P values over a Store.
type Cache[P any] struct {
	store storage.Store
	cfg   Config
	log   *slog.Logger
	rec   metrics.CacheRecorder

	mu sync.Mutex
}

// New creates a cache writing into store.
func New[P any](store storage.Store, cfg Config) *Cache[P] {
	if cfg.Name == "" {
		cfg.Name = "content"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.IndexKey == "" {
		cfg.IndexKey = cfg.Prefix + "index"
	}
	if cfg.Version == 0 {
		cfg.Version = DefaultVersion
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.EvictFraction <= 0 || cfg.EvictFraction > 1 {
		cfg.EvictFraction = DefaultEvictFraction
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Cache[P]{store: store, cfg: cfg, log: cfg.Logger, rec: cfg.Recorder}
	if c.log == nil {
		c.log = logger.WithComponent("contentcache")
	}
	c.log = c.log.With("cache", cfg.Name)
	if c.rec == nil {
		c.rec = metrics.NoopRecorder{}
	}
	return c
}

// Version returns the schema version stamped on new entries.
func (c *Cache[P]) Version() int { return c.cfg.Version }

// MaxEntries returns the index size that triggers eviction.
func (c *Cache[P]) MaxEntries() int { return c.cfg.MaxEntries }

func (c *Cache[P]) warn(op string, err error, args ...any) {
	kind := cacheerr.KindOf(err)
	c.rec.Failed(kind.String())
	c.log.Warn("cache operation failed", append([]any{"op", op, "kind", kind.String(), "error", err}, args...)...)
}

// index returns the tracked keys. A missing or unreadable index is empty.
func (c *Cache[P]) index() []string {
	raw, ok, err := c.store.GetItem(c.cfg.IndexKey)
	if err != nil {
		c.warn("index", cacheerr.FromStore(err))
		return nil
	}
	if !ok {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		c.log.Debug("cache index corrupt", "error", err)
		return nil
	}
	return keys
}

func (c *Cache[P]) setIndex(keys []string) {
	if keys == nil {
		keys = []string{}
	}
	raw, _ := json.Marshal(keys)
	if err := c.store.SetItem(c.cfg.IndexKey, string(raw)); err != nil {
		c.warn("index", cacheerr.FromStore(err))
	}
}

func (c *Cache[P]) remove(key string) {
	if err := c.store.RemoveItem(key); err != nil {
		c.warn("remove", cacheerr.FromStore(err), "key", key)
	}
}

// read decodes the entry stored at key and checks that it is still live.
func (c *Cache[P]) read(key string) (P, error) {
	var zero P
	raw, ok, err := c.store.GetItem(key)
	if err != nil {
		return zero, cacheerr.FromStore(err)
	}
	if !ok {
		return zero, cacheerr.ErrMiss
	}
	var e entry[P]
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return zero, fmt.Errorf("decode: %w: %v", cacheerr.ErrCorrupt, err)
	}
	if e.Version != c.cfg.Version {
		return zero, fmt.Errorf("version %d, want %d: %w", e.Version, c.cfg.Version, errVersion)
	}
	if age := c.cfg.Now().UnixMilli() - e.CachedAt; age > c.cfg.TTL.Milliseconds() {
		return zero, fmt.Errorf("age %dms: %w", age, errExpired)
	}
	return e.Data, nil
}

var (
	errVersion = fmt.Errorf("schema version mismatch: %w", cacheerr.ErrStale)
	errExpired = fmt.Errorf("ttl elapsed: %w", cacheerr.ErrStale)
)

// Get returns the cached payload for (a, b). Corrupt and outdated entries are
// removed; expired entries are also dropped from the index.
func (c *Cache[P]) Get(a, b string) (P, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.DeriveKey(a, b)
	data, err := c.read(key)
	if err == nil {
		c.rec.Hit()
		return data, true
	}

	c.rec.Miss()
	switch {
	case errors.Is(err, errExpired):
		c.rec.Stale()
		c.log.Debug("cache entry expired", "key", key)
		c.remove(key)
		c.setIndex(utils.RemoveString(c.index(), key))
	case errors.Is(err, errVersion):
		c.rec.Stale()
		c.log.Debug("cache entry outdated", "key", key, "error", err)
		c.remove(key)
	case cacheerr.KindOf(err) == cacheerr.KindCorrupt:
		c.rec.Failed(cacheerr.KindCorrupt.String())
		c.log.Debug("cache entry corrupt", "key", key, "error", err)
		c.remove(key)
	case cacheerr.KindOf(err) != cacheerr.KindMiss:
		c.warn("get", err, "key", key)
	}
	var zero P
	return zero, false
}

// Set caches payload under the key derived from (a, b), evicting the oldest
// batch first when the index is full. If the store rejects the write, the
// namespace is cleared and the write retried once.
func (c *Cache[P]) Set(a, b string, payload P) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.DeriveKey(a, b)
	raw, err := json.Marshal(entry[P]{Data: payload, CachedAt: c.cfg.Now().UnixMilli(), Version: c.cfg.Version})
	if err != nil {
		c.warn("set", fmt.Errorf("encode: %w: %v", cacheerr.ErrStore, err), "key", key)
		return
	}

	c.evict()
	if err := c.store.SetItem(key, string(raw)); err != nil {
		c.log.Warn("cache write failed, clearing namespace", "key", key, "error", err)
		c.rec.Failed(cacheerr.KindOf(cacheerr.FromStore(err)).String())
		c.clear()
		if err := c.store.SetItem(key, string(raw)); err != nil {
			c.warn("set", cacheerr.FromStore(err), "key", key, "retry", true)
			return
		}
		c.setIndex([]string{key})
		return
	}

	idx := c.index()
	if utils.ContainsString(idx, key) {
		return
	}
	c.setIndex(append(idx, key))
}

// evict removes the oldest EvictFraction of indexed entries once the index
// holds MaxEntries or more. Entries that are missing or do not decode are
// dropped from the index along the way.
func (c *Cache[P]) evict() {
	idx := c.index()
	if len(idx) < c.cfg.MaxEntries {
		return
	}

	type aged struct {
		key      string
		cachedAt int64
	}
	entries := make([]aged, 0, len(idx))
	for _, key := range idx {
		raw, ok, err := c.store.GetItem(key)
		if err != nil {
			c.warn("evict", cacheerr.FromStore(err), "key", key)
			c.remove(key)
			continue
		}
		if !ok {
			continue
		}
		var h header
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			c.remove(key)
			continue
		}
		entries = append(entries, aged{key: key, cachedAt: h.CachedAt})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].cachedAt < entries[j].cachedAt })
	n := int(math.Ceil(float64(len(entries)) * c.cfg.EvictFraction))
	for _, e := range entries[:n] {
		c.remove(e.key)
	}

	survivors := make([]string, 0, len(entries)-n)
	for _, e := range entries[n:] {
		survivors = append(survivors, e.key)
	}
	c.setIndex(survivors)
	c.rec.Evicted(n)
	c.log.Debug("evicted oldest entries", "evicted", n, "remaining", len(survivors))
}

// Clear removes every indexed entry, any untracked key under the prefix, and
// the index itself.
func (c *Cache[P]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}

func (c *Cache[P]) clear() {
	for _, key := range c.index() {
		c.remove(key)
	}
	if orphans, err := storage.KeysWithPrefix(c.store, c.cfg.Prefix); err == nil {
		for _, key := range orphans {
			if key != c.cfg.IndexKey {
				c.remove(key)
			}
		}
	}
	c.remove(c.cfg.IndexKey)
}

// Keys returns the tracked store keys in insertion order.
func (c *Cache[P]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.index()
	if idx == nil {
		return []string{}
	}
	return idx
}

// Stats counts the index and sums the UTF-16 size of every indexed entry still
// present in the store.
func (c *Cache[P]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.index()
	s := Stats{Entries: len(idx)}
	for _, key := range idx {
		raw, ok, err := c.store.GetItem(key)
		if err != nil {
			c.warn("stats", cacheerr.FromStore(err), "key", key)
			continue
		}
		if ok {
			s.SizeBytes += storage.Sizeof(raw)
		}
	}
	c.rec.Observe(s.Entries, s.SizeBytes)
	return s
}
