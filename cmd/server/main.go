package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tsijukebox/jukebox-backend/internal/api"
	"github.com/tsijukebox/jukebox-backend/internal/api/handlers"
	"github.com/tsijukebox/jukebox-backend/internal/cache"
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/errorreporting"
	"github.com/tsijukebox/jukebox-backend/internal/github"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/middleware"
	"github.com/tsijukebox/jukebox-backend/internal/scheduler"
	"github.com/tsijukebox/jukebox-backend/internal/secrets"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
	"github.com/tsijukebox/jukebox-backend/internal/tracing"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("No .env file found, using process environment")
	}
	for _, msg := range cfg.ConfigErrors {
		logger.Warn("Configuration problem", "detail", msg)
	}
	logger.Info("Initializing jukebox backend", "version", cfg.SentryRelease, "store", cfg.StoreBackend)

	if err := secrets.ValidateRequired(secrets.Required(cfg)); err != nil {
		logger.Error("Missing required configuration", "error", err)
		os.Exit(1)
	}

	if err := errorreporting.Init(cfg); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.Enabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer errorreporting.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(cfg, "jukebox-backend")
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	store, err := storage.Open(cfg)
	if err != nil {
		logger.Error("Failed to open cache store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if cfg.StoreBackend == "postgres" {
		logger.Info("Cache store connected", "url", secrets.MaskURL(cfg.DatabaseURL))
	}
	if cfg.GitHubToken != "" {
		logger.Info("GitHub requests authenticated", "token", secrets.Mask(cfg.GitHubToken))
	}

	responses, err := cache.NewFromConfig(cfg)
	if err != nil {
		logger.Warn("Response cache disabled", "error", err)
	}

	deps := api.Deps{
		Config: cfg,
		Store:  store,
		GitHub: github.NewService(github.NewCache(store, cfg), github.NewClient(cfg)),
		Lyrics: lyrics.NewService(lyrics.NewCache(store, cfg), lyrics.NewClient(cfg)),
	}
	if responses != nil {
		deps.Responses = responses
		defer responses.Close()
	}
	if cfg.EnableRateLimit {
		deps.Limiter = middleware.NewRateLimiterFromConfig(cfg)
		defer deps.Limiter.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Hub = handlers.NewHub(api.NewAdmin(deps).Snapshot, cfg.StatsPushInterval)
	go deps.Hub.Run(ctx)

	if sched, err := scheduler.New(maintenanceJobs(cfg, deps)...); err != nil {
		logger.Warn("Background jobs disabled", "error", err)
	} else {
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			errorreporting.CaptureError(err)
		}
		return
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
