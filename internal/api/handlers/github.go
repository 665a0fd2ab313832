package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tsijukebox/jukebox-backend/internal/apierr"
	"github.com/tsijukebox/jukebox-backend/internal/github"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
)

// GitHubHandler serves repository stats through the GitHub TTL cache.
type GitHubHandler struct {
	svc *github.Service
}

func NewGitHubHandler(svc *github.Service) *GitHubHandler {
	return &GitHubHandler{svc: svc}
}

// GetAll returns every section.
// GET /api/github?force=true
func (h *GitHubHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.FetchAll(r.Context(), truthy(r.URL.Query().Get("force")))
	if err != nil {
		logger.WarnContext(r.Context(), "github stats unavailable", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.FromUpstream("github", err).
			WithDetails(map[string]interface{}{"provider": "github", "sections": st.Errors}))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetAction returns one section as {data, fromCache}.
// GET /api/github/{action}?force=true
func (h *GitHubHandler) GetAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	res, err := h.svc.FetchWithCache(r.Context(), action, truthy(r.URL.Query().Get("force")))
	switch {
	case errors.Is(err, github.ErrUnknownAction):
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("action", "Unknown action: "+action).
			WithDetails(map[string]interface{}{"field": "action", "allowed": github.Actions}))
		return
	case err != nil:
		apierr.WriteErrorWithContext(w, r, apierr.FromUpstream("github", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
