package handlers

import (
	"net/http"

	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// Health reports liveness and whether the persistent store answers.
func Health(store storage.Store, backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backend == "" {
			backend = "memory"
		}
		if _, err := store.Keys(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  backend,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": backend})
	}
}
