package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/contentcache"
	"github.com/tsijukebox/jukebox-backend/internal/github"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/lyrics"
	"github.com/tsijukebox/jukebox-backend/internal/secrets"
	"github.com/tsijukebox/jukebox-backend/internal/storage"
	"github.com/tsijukebox/jukebox-backend/internal/ttlcache"
)

// commandContext opens the configured store once per invocation.
type commandContext struct {
	backendFlag     string
	sqlitePathFlag  string
	databaseURLFlag string

	cfg   *config.Config
	store storage.Backend
}

func (c *commandContext) settings() *config.Config {
	if c.cfg != nil {
		return c.cfg
	}
	cfg := *config.Load()
	if v := strings.TrimSpace(c.backendFlag); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(c.sqlitePathFlag); v != "" {
		cfg.SQLitePath = v
	}
	if v := strings.TrimSpace(c.databaseURLFlag); v != "" {
		cfg.DatabaseURL = v
	}
	c.cfg = &cfg
	return c.cfg
}

func (c *commandContext) ensureStore() (storage.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg := c.settings()
	logger.InitWriter(os.Stderr, cfg.LogLevel)
	if err := secrets.ValidateRequired(secrets.Required(cfg)); err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	c.store = store
	return store, nil
}

func (c *commandContext) githubCache() (*ttlcache.Cache, error) {
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	return github.NewCache(store, c.settings()), nil
}

func (c *commandContext) lyricsCache() (*contentcache.Cache[lyrics.Data], error) {
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	return lyrics.NewCache(store, c.settings()), nil
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
