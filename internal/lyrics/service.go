package lyrics

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/tsijukebox/jukebox-backend/internal/contentcache"
	"github.com/tsijukebox/jukebox-backend/internal/errorreporting"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/tracing"
)

// Fetcher retrieves lyrics from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context, track, artist string) (Data, error)
}

// Result is a lookup answer plus whether it was served from cache.
type Result struct {
	Data
	FromCache bool `json:"fromCache"`
}

// Service is a read-through lyrics lookup over the content cache.
type Service struct {
	cache   *contentcache.Cache[Data]
	fetcher Fetcher
	group   singleflight.Group
	log     *slog.Logger
}

// NewService wires a cache and an upstream fetcher.
func NewService(cache *contentcache.Cache[Data], fetcher Fetcher) *Service {
	return &Service{cache: cache, fetcher: fetcher, log: logger.WithComponent("lyrics")}
}

// Cache exposes the underlying cache for admin endpoints.
func (s *Service) Cache() *contentcache.Cache[Data] { return s.cache }

// Lookup returns cached lyrics for (track, artist) or fetches and caches
// them. Concurrent misses for the same pair share one upstream request.
// Failed fetches are not cached; not-found answers are.
func (s *Service) Lookup(ctx context.Context, track, artist string) (Result, error) {
	key := s.cache.DeriveKey(track, artist)
	ctx, span := tracing.StartFetchSpan(ctx, provider, key)
	defer span.End()

	if d, ok := s.cache.Get(track, artist); ok {
		tracing.MarkCache(span, true)
		return Result{Data: d, FromCache: true}, nil
	}
	tracing.MarkCache(span, false)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		d, err := s.fetcher.Fetch(ctx, track, artist)
		if err != nil {
			errorreporting.CaptureUpstream(err, provider, "get")
			return nil, err
		}
		s.cache.Set(track, artist, d)
		return d, nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		s.log.WarnContext(ctx, "lyrics fetch failed", "track", track, "artist", artist, "error", err)
		return Result{}, err
	}
	return Result{Data: v.(Data)}, nil
}
