package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tsijukebox/jukebox-backend/internal/apierr"
	"github.com/tsijukebox/jukebox-backend/internal/cache"
	"github.com/tsijukebox/jukebox-backend/internal/contentcache"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/middleware"
	"github.com/tsijukebox/jukebox-backend/internal/ttlcache"
)

// CacheSnapshot is the combined view pushed to stats stream clients.
type CacheSnapshot struct {
	GitHub    ttlcache.Stats     `json:"github"`
	Lyrics    contentcache.Stats `json:"lyrics"`
	Responses *cache.Stats       `json:"responses,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// GitHubEntry describes one GitHub cache entry without mutating it.
type GitHubEntry struct {
	Key       string          `json:"key"`
	Expired   bool            `json:"expired"`
	CachedAt  int64           `json:"cachedAt"`
	ExpiresAt int64           `json:"expiresAt"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CacheAdminHandler handles cache inspection and invalidation endpoints.
type CacheAdminHandler struct {
	github    *ttlcache.Cache
	lyrics    *contentcache.Cache[lyrics.Data]
	responses cache.Cache
}

// NewCacheAdminHandler creates a cache admin handler. responses may be nil.
func NewCacheAdminHandler(gh *ttlcache.Cache, ly *contentcache.Cache[lyrics.Data], responses cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{github: gh, lyrics: ly, responses: responses}
}

// Snapshot collects current statistics for every cache.
func (h *CacheAdminHandler) Snapshot() CacheSnapshot {
	snap := CacheSnapshot{
		GitHub:    h.github.Stats(),
		Lyrics:    h.lyrics.Stats(),
		Timestamp: time.Now().UnixMilli(),
	}
	if h.responses != nil {
		st := h.responses.Stats()
		snap.Responses = &st
	}
	return snap
}

// invalidateResponses drops rendered responses that may embed cleared data.
func (h *CacheAdminHandler) invalidateResponses() {
	if h.responses != nil {
		h.responses.Clear()
	}
}

// GitHubStats returns {size, keys, lastUpdate}.
// GET /api/cache/github
func (h *CacheAdminHandler) GitHubStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.github.Stats())
}

// GitHubEntry returns metadata for one key, with its data while live.
// GET /api/cache/github/{key}
func (h *CacheAdminHandler) GitHubEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := middleware.ValidateCacheKey(key); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("key", err.Error()))
		return
	}
	cachedAt, ok := h.github.Timestamp(key)
	if !ok {
		apierr.WriteErrorWithContext(w, r, apierr.CacheKeyNotFound(key))
		return
	}
	expiresAt, _ := h.github.Expiration(key)
	entry := GitHubEntry{
		Key:       key,
		Expired:   h.github.IsExpired(key),
		CachedAt:  cachedAt,
		ExpiresAt: expiresAt,
	}
	if !entry.Expired {
		var raw json.RawMessage
		if h.github.Get(key, &raw) {
			entry.Data = raw
		}
	}
	writeJSON(w, http.StatusOK, entry)
}

// ClearGitHub removes one key, or the whole namespace when no key is given.
// DELETE /api/cache/github[/{key}]
func (h *CacheAdminHandler) ClearGitHub(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key != "" {
		if err := middleware.ValidateCacheKey(key); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("key", err.Error()))
			return
		}
	}
	h.github.Clear(key)
	h.invalidateResponses()
	logger.InfoContext(r.Context(), "github cache cleared", "key", key)

	resp := map[string]interface{}{"status": "ok", "cleared": "all"}
	if key != "" {
		resp["cleared"] = key
	}
	writeJSON(w, http.StatusOK, resp)
}

// LyricsStats returns {entries, sizeBytes} plus the indexed keys.
// GET /api/cache/lyrics
func (h *CacheAdminHandler) LyricsStats(w http.ResponseWriter, r *http.Request) {
	st := h.lyrics.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":    st.Entries,
		"sizeBytes":  st.SizeBytes,
		"maxEntries": h.lyrics.MaxEntries(),
		"version":    h.lyrics.Version(),
		"keys":       h.lyrics.Keys(),
	})
}

// ClearLyrics empties the lyrics cache.
// DELETE /api/cache/lyrics
func (h *CacheAdminHandler) ClearLyrics(w http.ResponseWriter, r *http.Request) {
	h.lyrics.Clear()
	h.invalidateResponses()
	logger.InfoContext(r.Context(), "lyrics cache cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "cleared": "all"})
}

// ResponseStats returns in-process response cache statistics.
// GET /api/cache/responses
func (h *CacheAdminHandler) ResponseStats(w http.ResponseWriter, r *http.Request) {
	if h.responses == nil {
		apierr.WriteErrorWithContext(w, r, apierr.CacheUnknown("responses"))
		return
	}
	writeJSON(w, http.StatusOK, h.responses.Stats())
}

// ClearResponses empties the in-process response cache.
// DELETE /api/cache/responses
func (h *CacheAdminHandler) ClearResponses(w http.ResponseWriter, r *http.Request) {
	if h.responses == nil {
		apierr.WriteErrorWithContext(w, r, apierr.CacheUnknown("responses"))
		return
	}
	h.responses.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Response cache invalidated"})
}
