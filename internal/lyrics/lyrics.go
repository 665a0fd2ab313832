// Package lyrics looks up song lyrics from LRCLIB and keeps them in the
// content-addressed lyrics cache, keyed by (track, artist).
package lyrics

import (
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/contentcache"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// Source names the provider a result came from.
type Source string

const (
	SourceLRCLib Source = "lrclib"
	SourceGenius Source = "genius"
	SourceNone   Source = "none"
)

// Data is the cached lyrics payload.
type Data struct {
	Source     Source `json:"source"`
	Synced     bool   `json:"synced"`
	Lines      []Line `json:"lines"`
	PlainText  string `json:"plainText,omitempty"`
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
}

// NotFound is the result recorded when no provider has the track.
func NotFound(track, artist string) Data {
	return Data{Source: SourceNone, Lines: []Line{}, TrackName: track, ArtistName: artist}
}

// NewCache builds the lyrics cache over store from LYRICS_CACHE_* settings.
func NewCache(store storage.Store, cfg *config.Config) *contentcache.Cache[Data] {
	return contentcache.New[Data](store, contentcache.Config{
		Name:       "lyrics",
		Prefix:     cfg.LyricsCachePrefix,
		IndexKey:   cfg.LyricsIndexKey,
		Version:    cfg.LyricsCacheVersion,
		MaxEntries: cfg.LyricsMaxEntries,
		TTL:        cfg.LyricsTTL,
		Logger:     logger.WithComponent("lyrics-cache"),
		Recorder:   metrics.ForCache("lyrics"),
	})
}
