// Package api assembles the HTTP router for the jukebox backend.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsijukebox/jukebox-backend/internal/api/handlers"
	"github.com/tsijukebox/jukebox-backend/internal/cache"
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/github"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/middleware"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// Deps are the services the router exposes.
type Deps struct {
	Config    *config.Config
	Store     storage.Store
	GitHub    *github.Service
	Lyrics    *lyrics.Service
	Responses cache.Cache             // nil disables response caching
	Limiter   *middleware.RateLimiter // nil disables rate limiting
	Hub       *handlers.Hub           // nil disables the stats stream
}

// NewAdmin builds the cache admin handler shared by the router and the stats hub.
func NewAdmin(d Deps) *handlers.CacheAdminHandler {
	return handlers.NewCacheAdminHandler(d.GitHub.Cache(), d.Lyrics.Cache(), d.Responses)
}

// NewRouter wires routes and middleware. Middleware order, outermost first:
// request ID, panic recovery, security headers, CORS, rate limit,
// compression, then per-route metrics.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handlers.Health(d.Store, d.Config.StoreBackend)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	gh := handlers.NewGitHubHandler(d.GitHub)
	ly := handlers.NewLyricsHandler(d.Lyrics)
	admin := NewAdmin(d)

	apiR := r.PathPrefix("/api").Subrouter()

	ghR := apiR.PathPrefix("/github").Subrouter()
	ghR.Use(middleware.ETag, cache.Responses(d.Responses, "github"))
	ghR.HandleFunc("", gh.GetAll).Methods(http.MethodGet)
	ghR.HandleFunc("/{action}", gh.GetAction).Methods(http.MethodGet)

	lyR := apiR.PathPrefix("/lyrics").Subrouter()
	lyR.Use(middleware.ETag, cache.Responses(d.Responses, "lyrics"))
	lyR.HandleFunc("", ly.Get).Methods(http.MethodGet)

	cacheR := apiR.PathPrefix("/cache").Subrouter()
	cacheR.Use(middleware.LimitRequestBody)
	cacheR.HandleFunc("/github", admin.GitHubStats).Methods(http.MethodGet)
	cacheR.HandleFunc("/github", publishAfter(d.Hub, admin.ClearGitHub)).Methods(http.MethodDelete)
	cacheR.HandleFunc("/github/{key}", admin.GitHubEntry).Methods(http.MethodGet)
	cacheR.HandleFunc("/github/{key}", publishAfter(d.Hub, admin.ClearGitHub)).Methods(http.MethodDelete)
	cacheR.HandleFunc("/lyrics", admin.LyricsStats).Methods(http.MethodGet)
	cacheR.HandleFunc("/lyrics", publishAfter(d.Hub, admin.ClearLyrics)).Methods(http.MethodDelete)
	cacheR.HandleFunc("/responses", admin.ResponseStats).Methods(http.MethodGet)
	cacheR.HandleFunc("/responses", publishAfter(d.Hub, admin.ClearResponses)).Methods(http.MethodDelete)
	if d.Hub != nil {
		cacheR.HandleFunc("/stream", d.Hub.ServeWS).Methods(http.MethodGet)
	}

	// mux runs Use middleware after route matching, so Metrics sees the template.
	r.Use(middleware.Metrics)
	return r
}

// Handler wraps the router in the global middleware chain.
func Handler(d Deps) http.Handler {
	var h http.Handler = NewRouter(d)
	h = middleware.Compress(h)
	if d.Limiter != nil && d.Config.EnableRateLimit {
		h = d.Limiter.Limit(h)
	}
	h = middleware.CORS(middleware.DefaultCORSConfig(d.Config.CORSAllowedOrigins))(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}

// publishAfter pushes a fresh stats snapshot once a clear succeeds.
func publishAfter(hub *handlers.Hub, next http.HandlerFunc) http.HandlerFunc {
	if hub == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r)
		hub.Publish()
	}
}
