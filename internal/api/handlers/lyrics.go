package handlers

import (
	"net/http"

	"github.com/tsijukebox/jukebox-backend/internal/apierr"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/middleware"
)

// LyricsHandler serves lyrics through the content-addressed lyrics cache.
type LyricsHandler struct {
	svc *lyrics.Service
}

func NewLyricsHandler(svc *lyrics.Service) *LyricsHandler {
	return &LyricsHandler{svc: svc}
}

// Get looks up lyrics for a track.
// GET /api/lyrics?track=...&artist=...
func (h *LyricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	track, err := middleware.RequiredParam(r, "track")
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("track"))
		return
	}
	artist, err := middleware.RequiredParam(r, "artist")
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("artist"))
		return
	}

	res, err := h.svc.Lookup(r.Context(), track, artist)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.FromUpstream("lrclib", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
