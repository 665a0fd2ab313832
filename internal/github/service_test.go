package github

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string]any
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		data: map[string]any{
			ActionRepoInfo:     &RepoInfo{FullName: "B0ttl3/TSiJUKEBOX"},
			ActionCommits:      &[]Commit{{SHA: "abc123"}},
			ActionContributors: &[]Contributor{{Login: "b0ttl3", Contributions: 10}},
			ActionReleases:     &[]Release{{TagName: "v1.0.0"}},
			ActionBranches:     &[]Branch{{Name: "main", Protected: true}},
			ActionLanguages:    &Languages{"TypeScript": 1200},
		},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, action string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[action]++
	if err := f.errs[action]; err != nil {
		return nil, err
	}
	return f.data[action], nil
}

func newTestService(f Fetcher) (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore(0)
	cfg := &config.Config{
		GitHubCachePrefix: "github_cache_",
		GitHubDefaultTTL:  15 * time.Minute,
		GitHubTTLs:        config.DefaultGitHubTTLs(),
	}
	return NewService(NewCache(store, cfg), f), store
}

func TestFetchWithCache(t *testing.T) {
	f := newFakeFetcher()
	svc, store := newTestService(f)
	ctx := context.Background()

	first, err := svc.FetchWithCache(ctx, ActionCommits, false)
	if err != nil {
		t.Fatalf("FetchWithCache: %v", err)
	}
	if first.FromCache {
		t.Error("first fetch should come from upstream")
	}
	if _, ok, _ := store.GetItem("github_cache_commits"); !ok {
		t.Error("expected github_cache_commits to be written")
	}

	second, err := svc.FetchWithCache(ctx, ActionCommits, false)
	if err != nil {
		t.Fatalf("FetchWithCache: %v", err)
	}
	if !second.FromCache {
		t.Error("second fetch should be served from cache")
	}
	commits, ok := second.Data.(*[]Commit)
	if !ok || len(*commits) != 1 || (*commits)[0].SHA != "abc123" {
		t.Errorf("cached data = %#v", second.Data)
	}

	forced, err := svc.FetchWithCache(ctx, ActionCommits, true)
	if err != nil {
		t.Fatalf("FetchWithCache: %v", err)
	}
	if forced.FromCache || f.calls[ActionCommits] != 2 {
		t.Errorf("force should bypass cache: fromCache=%v calls=%d", forced.FromCache, f.calls[ActionCommits])
	}

	exp, ok := svc.Cache().Expiration(ActionCommits)
	ts, _ := svc.Cache().Timestamp(ActionCommits)
	if !ok || exp-ts != (5*time.Minute).Milliseconds() {
		t.Errorf("commits TTL = %dms, want 5m", exp-ts)
	}
}

func TestFetchWithCacheSkipsNilData(t *testing.T) {
	f := newFakeFetcher()
	f.data[ActionReleases] = nil
	svc, store := newTestService(f)

	r, err := svc.FetchWithCache(context.Background(), ActionReleases, false)
	if err != nil {
		t.Fatalf("FetchWithCache: %v", err)
	}
	if r.Data != nil || r.FromCache {
		t.Errorf("result = %+v", r)
	}
	if _, ok, _ := store.GetItem("github_cache_releases"); ok {
		t.Error("nil data must not be cached")
	}
}

func TestFetchWithCacheErrors(t *testing.T) {
	f := newFakeFetcher()
	f.errs[ActionBranches] = errors.New("boom")
	svc, store := newTestService(f)

	if _, err := svc.FetchWithCache(context.Background(), ActionBranches, false); err == nil {
		t.Fatal("expected upstream error")
	}
	if _, ok, _ := store.GetItem("github_cache_branches"); ok {
		t.Error("failed fetch must not be cached")
	}
	if _, err := svc.FetchWithCache(context.Background(), "issues", false); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestFetchAll(t *testing.T) {
	f := newFakeFetcher()
	svc, _ := newTestService(f)
	ctx := context.Background()

	st, err := svc.FetchAll(ctx, false)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if st.FromCache {
		t.Error("cold FetchAll should not report fromCache")
	}
	if st.RepoInfo == nil || st.RepoInfo.FullName != "B0ttl3/TSiJUKEBOX" {
		t.Errorf("repoInfo = %+v", st.RepoInfo)
	}
	if len(st.Commits) != 1 || len(st.Contributors) != 1 || len(st.Releases) != 1 || len(st.Branches) != 1 || st.Languages["TypeScript"] != 1200 {
		t.Errorf("stats = %+v", st)
	}

	// one cached section is enough to report fromCache
	svc.Cache().Clear("")
	svc.Cache().Set(ActionLanguages, Languages{"Go": 1})
	st, err = svc.FetchAll(ctx, false)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !st.FromCache {
		t.Error("expected fromCache when any section was cached")
	}
	if st.Languages["Go"] != 1 {
		t.Errorf("languages = %v", st.Languages)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	f := newFakeFetcher()
	f.errs[ActionRepoInfo] = errors.New("down")
	f.errs[ActionCommits] = errors.New("down")
	f.errs[ActionReleases] = errors.New("down")
	svc, _ := newTestService(f)

	st, err := svc.FetchAll(context.Background(), false)
	if err != nil {
		t.Fatalf("contributors loaded, FetchAll should succeed: %v", err)
	}
	if len(st.Errors) != 3 {
		t.Errorf("errors = %v", st.Errors)
	}
	if st.Commits == nil || len(st.Commits) != 0 {
		t.Errorf("failed sections should be empty, not nil: %#v", st.Commits)
	}
	if len(st.Contributors) != 1 {
		t.Errorf("contributors = %+v", st.Contributors)
	}
}

func TestFetchAllCoreFailure(t *testing.T) {
	f := newFakeFetcher()
	for _, a := range []string{ActionRepoInfo, ActionCommits, ActionContributors} {
		f.errs[a] = errors.New("down")
	}
	svc, _ := newTestService(f)

	st, err := svc.FetchAll(context.Background(), false)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(st.Releases) != 1 || len(st.Branches) != 1 {
		t.Errorf("secondary sections should still load: %+v", st)
	}

	f2 := newFakeFetcher()
	f2.data[ActionRepoInfo], f2.data[ActionCommits], f2.data[ActionContributors] = nil, nil, nil
	svc2, _ := newTestService(f2)
	if _, err := svc2.FetchAll(context.Background(), false); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty core sections should be unavailable, got %v", err)
	}
}
