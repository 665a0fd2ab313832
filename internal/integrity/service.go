// Package integrity audits the persistent caches for entries the caches
// themselves would never serve: unreadable or expired GitHub entries, lyrics
// entries missing from the index, index keys without data and entries written
// under an older schema version.
package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// Check names.
const (
	CheckGitHubUnreadable  = "github_unreadable"
	CheckGitHubExpired     = "github_expired"
	CheckLyricsOrphans     = "lyrics_orphans"
	CheckLyricsDangling    = "lyrics_dangling_index"
	CheckLyricsUnreadable  = "lyrics_unreadable"
	CheckLyricsOldVersions = "lyrics_version_mismatch"
)

// CheckResult contains the result of one integrity check.
type CheckResult struct {
	CheckName  string    `json:"check"`
	IssueCount int64     `json:"issues"`
	Details    string    `json:"details"`
	CheckedAt  time.Time `json:"checkedAt"`
	HasIssues  bool      `json:"hasIssues"`
	// Keys are the affected store keys.
	Keys []string `json:"keys,omitempty"`
}

// Service runs integrity checks against one store. It reads the store
// directly, so a cleanup racing a running server is last-write-wins.
type Service struct {
	store         storage.Store
	githubPrefix  string
	lyricsPrefix  string
	lyricsIndex   string
	lyricsVersion int
	lyricsTTL     time.Duration
	now           func() time.Time
}

// NewService creates an integrity service using the cache namespaces in cfg.
func NewService(store storage.Store, cfg *config.Config) *Service {
	s := &Service{
		store:         store,
		githubPrefix:  cfg.GitHubCachePrefix,
		lyricsPrefix:  cfg.LyricsCachePrefix,
		lyricsIndex:   cfg.LyricsIndexKey,
		lyricsVersion: cfg.LyricsCacheVersion,
		lyricsTTL:     cfg.LyricsTTL,
		now:           time.Now,
	}
	if s.lyricsIndex == "" {
		s.lyricsIndex = s.lyricsPrefix + "index"
	}
	if s.lyricsVersion == 0 {
		s.lyricsVersion = 1
	}
	return s
}

type githubEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ExpiresAt int64           `json:"expiresAt"`
}

type lyricsHeader struct {
	CachedAt int64 `json:"cachedAt"`
	Version  int   `json:"version"`
}

func result(name, details string, keys []string, now time.Time) CheckResult {
	return CheckResult{
		CheckName:  name,
		IssueCount: int64(len(keys)),
		Details:    details,
		CheckedAt:  now,
		HasIssues:  len(keys) > 0,
		Keys:       keys,
	}
}

// CheckAllIntegrity runs every check and returns one result per check.
func (s *Service) CheckAllIntegrity(ctx context.Context) ([]CheckResult, error) {
	now := s.now()
	gh, err := s.checkGitHub(ctx, now)
	if err != nil {
		return nil, err
	}
	ly, err := s.checkLyrics(ctx, now)
	if err != nil {
		return nil, err
	}
	return append(gh, ly...), nil
}

func (s *Service) checkGitHub(ctx context.Context, now time.Time) ([]CheckResult, error) {
	if s.githubPrefix == "" {
		return nil, nil
	}
	keys, err := storage.KeysWithPrefix(s.store, s.githubPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list github entries: %w", err)
	}

	var unreadable, expired []string
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, ok, err := s.store.GetItem(k)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", k, err)
		}
		if !ok {
			continue
		}
		var e githubEntry
		if json.Unmarshal([]byte(raw), &e) != nil || e.ExpiresAt == 0 {
			unreadable = append(unreadable, k)
			continue
		}
		if now.UnixMilli() > e.ExpiresAt {
			expired = append(expired, k)
		}
	}

	return []CheckResult{
		result(CheckGitHubUnreadable, "GitHub entries that do not decode as {data, timestamp, expiresAt}", unreadable, now),
		result(CheckGitHubExpired, "GitHub entries past their expiry that no read has removed yet", expired, now),
	}, nil
}

func (s *Service) checkLyrics(ctx context.Context, now time.Time) ([]CheckResult, error) {
	if s.lyricsPrefix == "" {
		return nil, nil
	}
	keys, err := storage.KeysWithPrefix(s.store, s.lyricsPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list lyrics entries: %w", err)
	}
	index, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]bool, len(index))
	for _, k := range index {
		indexed[k] = true
	}

	present := make(map[string]bool, len(keys))
	var orphans, unreadable, stale []string
	for _, k := range keys {
		if k == s.lyricsIndex {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		present[k] = true
		if !indexed[k] {
			orphans = append(orphans, k)
			continue
		}
		raw, ok, err := s.store.GetItem(k)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", k, err)
		}
		if !ok {
			continue
		}
		var h lyricsHeader
		if json.Unmarshal([]byte(raw), &h) != nil {
			unreadable = append(unreadable, k)
			continue
		}
		expired := s.lyricsTTL > 0 && now.UnixMilli()-h.CachedAt > s.lyricsTTL.Milliseconds()
		if h.Version != s.lyricsVersion || expired {
			stale = append(stale, k)
		}
	}

	var dangling []string
	for _, k := range index {
		if !present[k] {
			dangling = append(dangling, k)
		}
	}

	return []CheckResult{
		result(CheckLyricsOrphans, "Lyrics entries not tracked by the index", orphans, now),
		result(CheckLyricsDangling, "Index keys with no stored entry", dangling, now),
		result(CheckLyricsUnreadable, "Indexed lyrics entries that do not decode", unreadable, now),
		result(CheckLyricsOldVersions, "Indexed lyrics entries from another schema version or past their TTL", stale, now),
	}, nil
}

func (s *Service) readIndex() ([]string, error) {
	raw, ok, err := s.store.GetItem(s.lyricsIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to read lyrics index: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var keys []string
	if json.Unmarshal([]byte(raw), &keys) != nil {
		// An unreadable index is treated as empty, as the cache does.
		return nil, nil
	}
	return keys, nil
}

// Cleanup removes everything the given results flagged and rewrites the
// lyrics index without those keys. It returns the number of distinct keys
// dropped from the store or the index.
func (s *Service) Cleanup(ctx context.Context, results []CheckResult) (int64, error) {
	drop := make(map[string]bool)
	for _, r := range results {
		for _, k := range r.Keys {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if drop[k] {
				continue
			}
			drop[k] = true
			// dangling index keys have nothing stored
			if r.CheckName == CheckLyricsDangling {
				continue
			}
			if err := s.store.RemoveItem(k); err != nil {
				return 0, fmt.Errorf("failed to remove %s: %w", k, err)
			}
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	index, err := s.readIndex()
	if err != nil {
		return 0, err
	}
	kept := make([]string, 0, len(index))
	for _, k := range index {
		if !drop[k] {
			kept = append(kept, k)
		}
	}
	if len(kept) != len(index) {
		raw, _ := json.Marshal(kept)
		if err := s.store.SetItem(s.lyricsIndex, string(raw)); err != nil {
			return 0, fmt.Errorf("failed to rewrite lyrics index: %w", err)
		}
	}

	logger.Info("cache integrity cleanup complete", "removed", len(drop))
	return int64(len(drop)), nil
}
