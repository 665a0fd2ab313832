// Package storage defines the synchronous, capacity-bounded string key/value
// store the caches persist into, and the backends that implement it.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tsijukebox/jukebox-backend/internal/config"
)

// ErrQuotaExceeded is returned by SetItem when the write would push the store past its quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is the persistent key/value contract shared by every cache.
//
// A missing key is reported as ok=false with a nil error. Errors are reserved
// for backend failures and ErrQuotaExceeded.
type Store interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Keys() ([]string, error)
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	Close() error
}

// Sizeof returns the number of bytes s occupies as UTF-16, the unit browser
// storage quotas are measured in.
func Sizeof(s string) int64 {
	var units int64
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return units * 2
}

// KeysWithPrefix lists store keys that start with prefix, sorted.
func KeysWithPrefix(s Store, prefix string) ([]string, error) {
	all, err := s.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Open builds the backend selected by cfg.StoreBackend.
func Open(cfg *config.Config) (Backend, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return NewMemoryStore(cfg.StoreQuotaBytes), nil
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath, cfg.StoreQuotaBytes, cfg.StoreStmtTimeout)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		return OpenPostgres(cfg.DatabaseURL, cfg.StoreQuotaBytes, cfg.StoreStmtTimeout)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
