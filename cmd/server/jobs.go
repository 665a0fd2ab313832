package main

import (
	"context"

	"github.com/tsijukebox/jukebox-backend/internal/api"
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/scheduler"
)

// maintenanceJobs keeps the GitHub cache warm and the cache gauges current.
func maintenanceJobs(cfg *config.Config, d api.Deps) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:       "github-warm",
			Schedule:   cfg.GitHubWarmSchedule,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := d.GitHub.FetchAll(ctx, false)
				return err
			},
		},
		{
			Name:     "cache-stats",
			Schedule: cfg.CacheStatsSchedule,
			Run: func(ctx context.Context) error {
				// Stats refreshes the entry and size gauges as a side effect.
				d.GitHub.Cache().Stats()
				d.Lyrics.Cache().Stats()
				return nil
			},
		},
	}
}
