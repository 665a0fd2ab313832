package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/errorreporting"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
	"github.com/tsijukebox/jukebox-backend/internal/tracing"
	"github.com/tsijukebox/jukebox-backend/internal/ttlcache"
)

// ErrUnavailable is returned by FetchAll when none of the core sections
// (repo info, commits, contributors) could be loaded.
var ErrUnavailable = errors.New("github: repository stats unavailable")

// Fetcher retrieves one action's payload from GitHub.
type Fetcher interface {
	Fetch(ctx context.Context, action string) (any, error)
}

// Result is one action's payload and whether it was served from cache.
// Data is nil when the upstream returned nothing.
type Result struct {
	Data      any  `json:"data"`
	FromCache bool `json:"fromCache"`
}

// Stats aggregates every action for the repository stats page.
type Stats struct {
	RepoInfo     *RepoInfo         `json:"repoInfo"`
	Commits      []Commit          `json:"commits"`
	Contributors []Contributor     `json:"contributors"`
	Releases     []Release         `json:"releases"`
	Branches     []Branch          `json:"branches"`
	Languages    Languages         `json:"languages"`
	FromCache    bool              `json:"fromCache"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// NewCache builds the GitHub TTL cache over store from GITHUB_CACHE_* settings.
func NewCache(store storage.Store, cfg *config.Config) *ttlcache.Cache {
	return ttlcache.New(store, ttlcache.Config{
		Name:       "github",
		Prefix:     cfg.GitHubCachePrefix,
		DefaultTTL: cfg.GitHubDefaultTTL,
		TTLs:       cfg.GitHubTTLs,
		Logger:     logger.WithComponent("github-cache"),
		Recorder:   metrics.ForCache("github"),
	})
}

// Service reads GitHub stats through the TTL cache.
type Service struct {
	cache   *ttlcache.Cache
	fetcher Fetcher
	group   singleflight.Group
	log     *slog.Logger
}

func NewService(cache *ttlcache.Cache, fetcher Fetcher) *Service {
	return &Service{cache: cache, fetcher: fetcher, log: logger.WithComponent("github")}
}

// Cache exposes the underlying cache for admin endpoints.
func (s *Service) Cache() *ttlcache.Cache { return s.cache }

// FetchWithCache serves action from cache unless force is set, otherwise
// fetches it and caches non-nil data under the action's TTL.
func (s *Service) FetchWithCache(ctx context.Context, action string, force bool) (Result, error) {
	if !ValidAction(action) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	ctx, span := tracing.StartFetchSpan(ctx, provider, action)
	defer span.End()

	if !force {
		v := newValue(action)
		if s.cache.Get(action, v) {
			tracing.MarkCache(span, true)
			s.log.DebugContext(ctx, "cache hit", "action", action)
			return Result{Data: v, FromCache: true}, nil
		}
	}
	tracing.MarkCache(span, false)

	v, err, _ := s.group.Do(action, func() (interface{}, error) {
		data, err := s.fetcher.Fetch(ctx, action)
		if err != nil {
			errorreporting.CaptureUpstream(err, provider, action)
			return nil, err
		}
		if data != nil {
			s.cache.Set(action, data)
		}
		return data, nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		s.log.WarnContext(ctx, "fetch failed", "action", action, "error", err)
		return Result{}, err
	}
	return Result{Data: v}, nil
}

// FetchAll loads every action concurrently. Sections that fail are left
// empty and listed in Stats.Errors; the call fails only when repo info,
// commits and contributors all failed.
func (s *Service) FetchAll(ctx context.Context, force bool) (Stats, error) {
	results := make([]Result, len(Actions))
	errs := make([]error, len(Actions))

	var g errgroup.Group
	for i, action := range Actions {
		g.Go(func() error {
			results[i], errs[i] = s.FetchWithCache(ctx, action, force)
			return nil
		})
	}
	_ = g.Wait()

	st := Stats{
		Commits:      []Commit{},
		Contributors: []Contributor{},
		Releases:     []Release{},
		Branches:     []Branch{},
		Languages:    Languages{},
	}
	for i, action := range Actions {
		if errs[i] != nil {
			if st.Errors == nil {
				st.Errors = make(map[string]string)
			}
			st.Errors[action] = errs[i].Error()
			continue
		}
		st.FromCache = st.FromCache || results[i].FromCache
		st.assign(results[i].Data)
	}

	// Actions[0:3] are repo-info, commits and contributors.
	for i := 0; i < 3; i++ {
		if errs[i] == nil && results[i].Data != nil {
			return st, nil
		}
	}
	if cause := errors.Join(errs[:3]...); cause != nil {
		return st, fmt.Errorf("%w: %w", ErrUnavailable, cause)
	}
	return st, ErrUnavailable
}

func (st *Stats) assign(data any) {
	switch v := data.(type) {
	case *RepoInfo:
		st.RepoInfo = v
	case *[]Commit:
		if *v != nil {
			st.Commits = *v
		}
	case *[]Contributor:
		if *v != nil {
			st.Contributors = *v
		}
	case *[]Release:
		if *v != nil {
			st.Releases = *v
		}
	case *[]Branch:
		if *v != nil {
			st.Branches = *v
		}
	case *Languages:
		if *v != nil {
			st.Languages = *v
		}
	}
}
