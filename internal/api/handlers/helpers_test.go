package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/apierr"
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/github"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

type githubFetcher struct {
	mu    sync.Mutex
	data  map[string]any
	err   error
	calls int
}

func (f *githubFetcher) Fetch(ctx context.Context, action string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data[action], nil
}

func newGitHubFetcher() *githubFetcher {
	return &githubFetcher{data: map[string]any{
		github.ActionRepoInfo:     &github.RepoInfo{FullName: "B0ttl3/TSiJUKEBOX"},
		github.ActionCommits:      &[]github.Commit{{SHA: "abc123"}},
		github.ActionContributors: &[]github.Contributor{{Login: "b0ttl3", Contributions: 3}},
		github.ActionLanguages:    &github.Languages{"TypeScript": 42},
	}}
}

type lyricsFetcher struct {
	mu    sync.Mutex
	data  lyrics.Data
	err   error
	calls int
}

func (f *lyricsFetcher) Fetch(ctx context.Context, track, artist string) (lyrics.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return lyrics.Data{}, f.err
	}
	d := f.data
	d.TrackName, d.ArtistName = track, artist
	return d, nil
}

func testConfig() *config.Config {
	return &config.Config{
		GitHubCachePrefix:  "github_cache_",
		GitHubDefaultTTL:   15 * time.Minute,
		GitHubTTLs:         config.DefaultGitHubTTLs(),
		LyricsCachePrefix:  "lyrics_cache_",
		LyricsIndexKey:     "lyrics_cache_index",
		LyricsMaxEntries:   100,
		LyricsCacheVersion: 1,
	}
}

func newServices(gf github.Fetcher, lf lyrics.Fetcher) (*github.Service, *lyrics.Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore(0)
	cfg := testConfig()
	gh := github.NewService(github.NewCache(store, cfg), gf)
	ly := lyrics.NewService(lyrics.NewCache(store, cfg), lf)
	return gh, ly, store
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("store offline")

func (brokenStore) GetItem(string) (string, bool, error) { return "", false, errBroken }
func (brokenStore) SetItem(string, string) error         { return errBroken }
func (brokenStore) RemoveItem(string) error              { return errBroken }
func (brokenStore) Keys() ([]string, error)              { return nil, errBroken }

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) apierr.ErrorCode {
	t.Helper()
	var resp apierr.ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Error == nil {
		t.Fatalf("expected error body, got %s", rr.Body.String())
	}
	return resp.Error.Code
}
