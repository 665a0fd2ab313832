package contentcache

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

type song struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

func newTestCache[P any](store storage.Store, clock *fakeClock, mutate func(*Config)) *Cache[P] {
	cfg := Config{
		Name:   "lyrics",
		Prefix: "lyrics_cache_",
		Now:    clock.Now,
		Logger: logger.Discard(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New[P](store, cfg)
}

func storeHas(t *testing.T, s storage.Store, key string) bool {
	t.Helper()
	_, ok, err := s.GetItem(key)
	if err != nil {
		t.Fatalf("GetItem(%q): %v", key, err)
	}
	return ok
}

func TestSetGetRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[song](store, clock, nil)

	want := song{Title: "Bohemian Rhapsody", Lines: []string{"Is this the real life?", "Is this just fantasy?"}}
	c.Set("Bohemian Rhapsody", "Queen", want)

	got, ok := c.Get("  bohemian   rhapsody ", "QUEEN")
	if !ok {
		t.Fatal("expected hit through normalized key")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != c.DeriveKey("Bohemian Rhapsody", "Queen") {
		t.Fatalf("unexpected index %v", keys)
	}

	// Re-setting the same pair does not duplicate the index entry.
	c.Set("BOHEMIAN RHAPSODY", "queen", want)
	if n := len(c.Keys()); n != 1 {
		t.Fatalf("index has %d entries, want 1", n)
	}
}

func TestMissOnAbsentKey(t *testing.T) {
	c := newTestCache[song](storage.NewMemoryStore(0), &fakeClock{now: time.UnixMilli(0)}, nil)
	if _, ok := c.Get("Nothing", "Here"); ok {
		t.Fatal("expected miss")
	}
	if keys := c.Keys(); keys == nil || len(keys) != 0 {
		t.Fatalf("expected empty non-nil keys, got %#v", keys)
	}
}

func TestEvictionRemovesOldestBatch(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[string](store, clock, func(cfg *Config) { cfg.MaxEntries = 5 })

	var keys []string
	for i := 0; i < 6; i++ {
		clock.Advance(time.Second)
		c.Set(fmt.Sprintf("Track %d", i), "Artist", fmt.Sprintf("lyrics %d", i))
		keys = append(keys, c.DeriveKey(fmt.Sprintf("Track %d", i), "Artist"))
	}

	idx := c.Keys()
	if len(idx) > 5 {
		t.Fatalf("index size %d exceeds max", len(idx))
	}
	if storeHas(t, store, keys[0]) {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, k := range idx {
		if k == keys[0] {
			t.Fatal("evicted key still indexed")
		}
	}
	for _, k := range keys[1:] {
		if !storeHas(t, store, k) {
			t.Fatalf("entry %q evicted unexpectedly", k)
		}
	}
	if !reflect.DeepEqual(idx, keys[1:]) {
		t.Fatalf("index = %v, want %v", idx, keys[1:])
	}
}

func TestEvictionBatchRoundsUp(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[int](store, clock, func(cfg *Config) { cfg.MaxEntries = 7 })

	// Insert out of order so eviction must sort by cachedAt, not index position.
	order := []int{3, 0, 5, 1, 6, 2, 4}
	keys := make(map[int]string)
	for _, n := range order {
		clock.now = time.UnixMilli(int64(n+1) * 1000)
		c.Set(fmt.Sprint(n), "x", n)
		keys[n] = c.DeriveKey(fmt.Sprint(n), "x")
	}
	clock.now = time.UnixMilli(100_000)
	c.Set("new", "x", 99)

	// ceil(7 * 0.2) = 2: the two oldest go.
	for _, n := range []int{0, 1} {
		if storeHas(t, store, keys[n]) {
			t.Errorf("entry %d should have been evicted", n)
		}
	}
	for _, n := range []int{2, 3, 4, 5, 6} {
		if !storeHas(t, store, keys[n]) {
			t.Errorf("entry %d should survive", n)
		}
	}
	if got := c.Stats().Entries; got != 6 {
		t.Fatalf("entries = %d, want 6", got)
	}
}

func TestEvictionDropsMissingAndCorrupt(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[string](store, clock, func(cfg *Config) { cfg.MaxEntries = 5 })

	var keys []string
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		c.Set(fmt.Sprint(i), "a", "v")
		keys = append(keys, c.DeriveKey(fmt.Sprint(i), "a"))
	}
	_ = store.RemoveItem(keys[1])
	_ = store.SetItem(keys[2], "{broken")

	clock.Advance(time.Second)
	c.Set("fresh", "a", "v")

	// Survivors: 0, 3, 4 -> ceil(3*0.2)=1 evicted (0), then "fresh" appended.
	want := []string{keys[3], keys[4], c.DeriveKey("fresh", "a")}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("index = %v, want %v", got, want)
	}
	if storeHas(t, store, keys[2]) {
		t.Fatal("corrupt entry should be removed during the scan")
	}
}

func TestVersionBumpInvalidates(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	v1 := newTestCache[string](store, clock, func(cfg *Config) { cfg.Version = 1 })
	v1.Set("Song", "Band", "old format")

	v2 := newTestCache[string](store, clock, func(cfg *Config) { cfg.Version = 2 })
	if _, ok := v2.Get("Song", "Band"); ok {
		t.Fatal("entry from previous version should miss")
	}
	key := v2.DeriveKey("Song", "Band")
	if storeHas(t, store, key) {
		t.Fatal("outdated entry should be removed")
	}

	v2.Set("Song", "Band", "new format")
	if got, ok := v2.Get("Song", "Band"); !ok || got != "new format" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestTTLExpiryRemovesFromIndex(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[string](store, clock, nil)

	c.Set("Song", "Band", "words")
	c.Set("Other", "Band", "more words")
	key := c.DeriveKey("Song", "Band")

	clock.Advance(DefaultTTL)
	if _, ok := c.Get("Song", "Band"); !ok {
		t.Fatal("entry exactly at TTL should still be live")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get("Song", "Band"); ok {
		t.Fatal("expected miss after TTL")
	}
	if storeHas(t, store, key) {
		t.Fatal("expired entry should be removed")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{c.DeriveKey("Other", "Band")}) {
		t.Fatalf("index = %v", got)
	}
}

func TestCorruptEntryIsRemoved(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[song](store, clock, nil)

	key := c.DeriveKey("Song", "Band")
	for _, raw := range []string{"not json", `{"data":"wrong shape","cachedAt":0,"version":1}`} {
		_ = store.SetItem(key, raw)
		if _, ok := c.Get("Song", "Band"); ok {
			t.Fatalf("%q: expected miss", raw)
		}
		if storeHas(t, store, key) {
			t.Fatalf("%q: corrupt entry should be removed", raw)
		}
	}
}

func TestCorruptIndexReadsAsEmpty(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[string](store, clock, nil)

	_ = store.SetItem("lyrics_cache_index", "{")
	if got := c.Stats(); got.Entries != 0 {
		t.Fatalf("entries = %d", got.Entries)
	}
	c.Set("Song", "Band", "v")
	if got := c.Keys(); len(got) != 1 {
		t.Fatalf("index = %v", got)
	}
}

func TestClearRemovesIndexedAndUntracked(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[string](store, clock, nil)

	c.Set("A", "x", "1")
	c.Set("B", "x", "2")
	_ = store.SetItem("lyrics_cache_orphan", "{}")
	_ = store.SetItem("github_cache_commits", "keep")

	c.Clear()

	keys, _ := store.Keys()
	if !reflect.DeepEqual(keys, []string{"github_cache_commits"}) {
		t.Fatalf("store keys after clear = %v", keys)
	}
	if s := c.Stats(); s != (Stats{}) {
		t.Fatalf("stats after clear = %+v", s)
	}
}

func TestStatsAccuracy(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache[string](store, clock, func(cfg *Config) { cfg.MaxEntries = 4 })

	check := func(step string) {
		t.Helper()
		idx := c.Keys()
		var want int64
		for _, k := range idx {
			if v, ok, _ := store.GetItem(k); ok {
				want += 2 * int64(len(v))
			}
		}
		s := c.Stats()
		if s.Entries != len(idx) {
			t.Errorf("%s: entries = %d, index has %d", step, s.Entries, len(idx))
		}
		if s.SizeBytes != want {
			t.Errorf("%s: sizeBytes = %d, want %d", step, s.SizeBytes, want)
		}
	}

	check("empty")
	for i := 0; i < 6; i++ {
		clock.Advance(time.Minute)
		c.Set(fmt.Sprint("track ", i), "artist", strings.Repeat("la ", i+1))
		check(fmt.Sprint("after set ", i))
	}
	_ = store.RemoveItem(c.Keys()[0])
	check("after external removal")
	c.Clear()
	check("after clear")
}

func TestQuotaTriggersClearAndRetry(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(5000)
	_ = store.SetItem("theme", "dark")
	c := newTestCache[string](store, clock, nil)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprint("song ", i), "artist", strings.Repeat("x", 200))
	}
	if n := len(c.Keys()); n != 5 {
		t.Fatalf("setup: index has %d entries", n)
	}

	big := strings.Repeat("y", 2000)
	c.Set("big song", "artist", big)

	got, ok := c.Get("big song", "artist")
	if !ok || got != big {
		t.Fatal("write should succeed after clearing the namespace")
	}
	if keys := c.Keys(); !reflect.DeepEqual(keys, []string{c.DeriveKey("big song", "artist")}) {
		t.Fatalf("index should be reset to the retried key, got %v", keys)
	}
	if _, ok := c.Get("song 0", "artist"); ok {
		t.Fatal("older entries should have been cleared")
	}
	if !storeHas(t, store, "theme") {
		t.Fatal("unrelated keys must survive the clear")
	}
}

func TestQuotaRetryFailureGivesUp(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(1000)
	c := newTestCache[string](store, clock, nil)

	c.Set("small", "artist", "ok")
	c.Set("huge", "artist", strings.Repeat("z", 1000))

	if _, ok := c.Get("huge", "artist"); ok {
		t.Fatal("oversized payload should not be cached")
	}
	if _, ok := c.Get("small", "artist"); ok {
		t.Fatal("namespace should have been cleared by the failed retry")
	}
	if n := c.Stats().Entries; n != 0 {
		t.Fatalf("entries = %d, want 0", n)
	}
}
