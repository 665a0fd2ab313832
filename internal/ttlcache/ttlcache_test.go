package ttlcache

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// fakeClock is a manually advanced clock.
type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

// faultyStore fails selected operations.
type faultyStore struct {
	*storage.MemoryStore
	failGet, failSet, failKeys bool
}

var errDisabled = errors.New("storage disabled")

func (f *faultyStore) GetItem(key string) (string, bool, error) {
	if f.failGet {
		return "", false, errDisabled
	}
	return f.MemoryStore.GetItem(key)
}

func (f *faultyStore) SetItem(key, value string) error {
	if f.failSet {
		return errDisabled
	}
	return f.MemoryStore.SetItem(key, value)
}

func (f *faultyStore) Keys() ([]string, error) {
	if f.failKeys {
		return nil, errDisabled
	}
	return f.MemoryStore.Keys()
}

type commit struct {
	SHA string `json:"sha"`
}

func newTestCache(store storage.Store, clock *fakeClock) *Cache {
	return New(store, Config{
		Name:   "github",
		Prefix: "github_cache_",
		TTLs: map[string]time.Duration{
			"commits":   5 * time.Minute,
			"languages": 60 * time.Minute,
		},
		Now:    clock.Now,
		Logger: logger.Discard(),
	})
}

func TestSetThenGetBeforeExpiry(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache(store, clock)

	c.SetWithTTL("commits", []commit{{SHA: "abc"}}, 5*time.Minute)

	clock.Advance(4 * time.Minute)
	got, ok := GetAs[[]commit](c, "commits")
	if !ok {
		t.Fatal("expected hit at t=4m")
	}
	if !reflect.DeepEqual(got, []commit{{SHA: "abc"}}) {
		t.Fatalf("unexpected value %+v", got)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := GetAs[[]commit](c, "commits"); ok {
		t.Fatal("expected miss at t=6m")
	}
	if _, ok, _ := store.GetItem("github_cache_commits"); ok {
		t.Fatal("expired key should have been removed from the store")
	}
}

func TestExpiryBoundary(t *testing.T) {
	for _, ttl := range []time.Duration{time.Minute, 5 * time.Minute, 90 * time.Minute} {
		clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
		store := storage.NewMemoryStore(0)
		c := newTestCache(store, clock)

		c.SetWithTTL("k", "v", ttl)
		if _, ok := GetAs[string](c, "k"); !ok {
			t.Fatalf("ttl=%v: expected immediate hit", ttl)
		}
		clock.Advance(ttl)
		if _, ok := GetAs[string](c, "k"); !ok {
			t.Fatalf("ttl=%v: entry should still be live exactly at expiresAt", ttl)
		}
		clock.Advance(time.Millisecond)
		if _, ok := GetAs[string](c, "k"); ok {
			t.Fatalf("ttl=%v: expected miss 1ms after expiresAt", ttl)
		}
		if _, ok, _ := store.GetItem("github_cache_k"); ok {
			t.Fatalf("ttl=%v: stale key not removed", ttl)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	c := newTestCache(storage.NewMemoryStore(0), clock)

	values := []any{
		"plain string",
		float64(42),
		true,
		[]any{"a", float64(1), nil},
		map[string]any{"name": "TSiJUKEBOX", "stars": float64(12), "topics": []any{"kiosk", "music"}},
	}
	for i, want := range values {
		c.Set("value", want)
		var got any
		if !c.Get("value", &got) {
			t.Fatalf("case %d: expected hit", i)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("case %d: got %#v, want %#v", i, got, want)
		}
	}
}

func TestTTLResolution(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1000)}
	c := newTestCache(storage.NewMemoryStore(0), clock)

	c.Set("commits", 1)
	c.Set("unlisted", 1)
	c.SetWithTTL("languages", 1, 2*time.Minute)

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"commits", 5 * time.Minute},
		{"unlisted", DefaultTTL},
		{"languages", 2 * time.Minute},
	}
	for _, tt := range tests {
		exp, ok := c.Expiration(tt.key)
		if !ok {
			t.Fatalf("%s: no expiration", tt.key)
		}
		if got := time.Duration(exp-1000) * time.Millisecond; got != tt.want {
			t.Errorf("%s: ttl %v, want %v", tt.key, got, tt.want)
		}
		if ts, _ := c.Timestamp(tt.key); ts != 1000 {
			t.Errorf("%s: timestamp %d, want 1000", tt.key, ts)
		}
	}
}

func TestCorruptEntryIsRemoved(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache(store, clock)

	_ = store.SetItem("github_cache_commits", "{not json")

	if _, ok := GetAs[[]commit](c, "commits"); ok {
		t.Fatal("expected miss on corrupt entry")
	}
	if _, ok, _ := store.GetItem("github_cache_commits"); ok {
		t.Fatal("corrupt key should be removed")
	}
}

func TestIsExpiredDoesNotMutate(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache(store, clock)

	if !c.IsExpired("commits") {
		t.Fatal("absent key should be expired")
	}
	c.Set("commits", "x")
	if c.IsExpired("commits") {
		t.Fatal("fresh key should not be expired")
	}
	clock.Advance(6 * time.Minute)
	if !c.IsExpired("commits") {
		t.Fatal("old key should be expired")
	}
	if _, ok, _ := store.GetItem("github_cache_commits"); !ok {
		t.Fatal("IsExpired must not remove the key")
	}
	// Introspection still works on expired entries.
	if _, ok := c.Timestamp("commits"); !ok {
		t.Fatal("Timestamp should read expired entries")
	}

	_ = store.SetItem("github_cache_bad", "nope")
	if !c.IsExpired("bad") {
		t.Fatal("unparseable entry should be expired")
	}
	if _, ok := c.Expiration("bad"); ok {
		t.Fatal("Expiration on corrupt entry should report false")
	}
}

func TestClearRespectsNamespace(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache(store, clock)

	c.Set("commits", 1)
	c.Set("branches", 2)
	_ = store.SetItem("lyrics_cache_abc", "keep")
	_ = store.SetItem("theme", "dark")

	c.Clear("commits")
	if _, ok, _ := store.GetItem("github_cache_commits"); ok {
		t.Fatal("single-key clear failed")
	}
	if _, ok, _ := store.GetItem("github_cache_branches"); !ok {
		t.Fatal("single-key clear removed too much")
	}

	c.Clear("")
	keys, _ := store.Keys()
	if !reflect.DeepEqual(keys, []string{"lyrics_cache_abc", "theme"}) {
		t.Fatalf("unexpected keys after clear: %v", keys)
	}
}

func TestStats(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(5000)}
	store := storage.NewMemoryStore(0)
	c := newTestCache(store, clock)

	empty := c.Stats()
	if empty.Size != 0 || len(empty.Keys) != 0 || empty.LastUpdate != nil {
		t.Fatalf("unexpected empty stats %+v", empty)
	}

	c.Set("commits", "a")
	clock.Advance(time.Second)
	c.Set("branches", "b")
	_ = store.SetItem("github_cache_junk", "xx")
	_ = store.SetItem("other", "ignored")

	var want int64
	for _, k := range []string{"github_cache_commits", "github_cache_branches", "github_cache_junk"} {
		v, _, _ := store.GetItem(k)
		want += 2 * int64(len(v))
	}

	s := c.Stats()
	if s.Size != want {
		t.Errorf("size = %d, want %d", s.Size, want)
	}
	if !reflect.DeepEqual(s.Keys, []string{"branches", "commits", "junk"}) {
		t.Errorf("keys = %v", s.Keys)
	}
	if s.LastUpdate == nil || *s.LastUpdate != 6000 {
		t.Errorf("lastUpdate = %v, want 6000", s.LastUpdate)
	}
}

func TestFailuresDegradeToMiss(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := &faultyStore{MemoryStore: storage.NewMemoryStore(0)}
	c := newTestCache(store, clock)

	store.failSet = true
	c.Set("commits", "x") // must not panic
	store.failSet = false
	if _, ok := GetAs[string](c, "commits"); ok {
		t.Fatal("failed write should leave nothing cached")
	}

	c.Set("commits", "x")
	store.failGet = true
	if _, ok := GetAs[string](c, "commits"); ok {
		t.Fatal("read failure should be a miss")
	}
	if !c.IsExpired("commits") {
		t.Fatal("read failure should report expired")
	}
	store.failGet = false

	store.failKeys = true
	if s := c.Stats(); s.Size != 0 || len(s.Keys) != 0 || s.LastUpdate != nil {
		t.Fatalf("expected empty stats on failure, got %+v", s)
	}
	c.Clear("")
	store.failKeys = false
	if _, ok := GetAs[string](c, "commits"); !ok {
		t.Fatal("failed clear should leave entries intact")
	}
}

func TestQuotaExceededIsSwallowed(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(64)
	c := newTestCache(store, clock)

	c.Set("big", make([]int, 100))
	if _, ok := GetAs[[]int](c, "big"); ok {
		t.Fatal("oversized value should not be cached")
	}
}

func TestUnencodableValue(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	c := newTestCache(storage.NewMemoryStore(0), clock)

	c.Set("fn", func() {})
	if !c.IsExpired("fn") {
		t.Fatal("unencodable value should not be stored")
	}
}

func TestWrongDestinationTypeKeepsEntry(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	store := storage.NewMemoryStore(0)
	c := newTestCache(store, clock)

	c.Set("commits", []commit{{SHA: "abc"}})
	if _, ok := GetAs[int](c, "commits"); ok {
		t.Fatal("decoding into the wrong type should miss")
	}
	if _, ok := GetAs[[]commit](c, "commits"); !ok {
		t.Fatal("entry should survive a mistyped read")
	}
}
