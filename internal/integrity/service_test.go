package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		GitHubCachePrefix:  "github_cache_",
		LyricsCachePrefix:  "lyrics_cache_",
		LyricsIndexKey:     "lyrics_cache_index",
		LyricsMaxEntries:   100,
		LyricsTTL:          7 * 24 * time.Hour,
		LyricsCacheVersion: 1,
	}
}

func mustSet(t *testing.T, s storage.Store, key, value string) {
	t.Helper()
	if err := s.SetItem(key, value); err != nil {
		t.Fatalf("set %s: %v", key, err)
	}
}

// seedStore writes one healthy entry per cache plus one problem per check.
func seedStore(t *testing.T) (*storage.MemoryStore, string) {
	t.Helper()
	store := storage.NewMemoryStore(0)
	cfg := testConfig()
	now := time.Now().UnixMilli()

	mustSet(t, store, "github_cache_repo-info", fmt.Sprintf(`{"data":{"full_name":"x"},"timestamp":%d,"expiresAt":%d}`, now, now+3600000))
	mustSet(t, store, "github_cache_commits", fmt.Sprintf(`{"data":[],"timestamp":%d,"expiresAt":%d}`, now-7200000, now-3600000))
	mustSet(t, store, "github_cache_branches", "not json")

	ly := lyrics.NewCache(store, cfg)
	ly.Set("Yesterday", "The Beatles", lyrics.NotFound("Yesterday", "The Beatles"))
	healthy := ly.DeriveKey("Yesterday", "The Beatles")

	mustSet(t, store, "lyrics_cache_orphan", fmt.Sprintf(`{"data":{},"cachedAt":%d,"version":1}`, now))
	mustSet(t, store, "lyrics_cache_old", fmt.Sprintf(`{"data":{},"cachedAt":%d,"version":0}`, now))
	index, _ := json.Marshal([]string{healthy, "lyrics_cache_old", "lyrics_cache_gone"})
	mustSet(t, store, "lyrics_cache_index", string(index))

	return store, healthy
}

func issues(t *testing.T, results []CheckResult) map[string]int64 {
	t.Helper()
	out := make(map[string]int64, len(results))
	for _, r := range results {
		out[r.CheckName] = r.IssueCount
		if r.HasIssues != (r.IssueCount > 0) {
			t.Errorf("%s: HasIssues=%v with %d issues", r.CheckName, r.HasIssues, r.IssueCount)
		}
	}
	return out
}

func TestCheckAllIntegrity(t *testing.T) {
	store, _ := seedStore(t)
	svc := NewService(store, testConfig())

	results, err := svc.CheckAllIntegrity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{
		CheckGitHubUnreadable:  1,
		CheckGitHubExpired:     1,
		CheckLyricsOrphans:     1,
		CheckLyricsDangling:    1,
		CheckLyricsUnreadable:  0,
		CheckLyricsOldVersions: 1,
	}
	got := issues(t, results)
	for name, n := range want {
		if got[name] != n {
			t.Errorf("%s = %d, want %d", name, got[name], n)
		}
	}
}

func TestCleanup(t *testing.T) {
	store, healthy := seedStore(t)
	cfg := testConfig()
	svc := NewService(store, cfg)
	ctx := context.Background()

	results, err := svc.CheckAllIntegrity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	removed, err := svc.Cleanup(ctx, results)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}

	results, err = svc.CheckAllIntegrity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for name, n := range issues(t, results) {
		if n != 0 {
			t.Errorf("%s still reports %d issues after cleanup", name, n)
		}
	}

	if _, ok, _ := store.GetItem("github_cache_repo-info"); !ok {
		t.Error("healthy GitHub entry was removed")
	}
	ly := lyrics.NewCache(store, cfg)
	if _, ok := ly.Get("Yesterday", "The Beatles"); !ok {
		t.Error("healthy lyrics entry was removed")
	}
	if keys := ly.Keys(); len(keys) != 1 || keys[0] != healthy {
		t.Errorf("index = %v, want [%s]", keys, healthy)
	}
}

func TestCleanupNothingFlagged(t *testing.T) {
	svc := NewService(storage.NewMemoryStore(0), testConfig())
	results, err := svc.CheckAllIntegrity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	removed, err := svc.Cleanup(context.Background(), results)
	if err != nil || removed != 0 {
		t.Fatalf("Cleanup on an empty store = %d, %v", removed, err)
	}
}
