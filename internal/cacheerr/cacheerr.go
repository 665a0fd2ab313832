// Package cacheerr classifies the ways a cache lookup or write can fail.
// Cache internals return these wrapped errors; public cache methods collapse
// all of them to "not cached".
package cacheerr

import (
	"errors"

	"github.com/tsijukebox/jukebox-backend/internal/storage"
)

// Kind is a cache failure category.
type Kind int

const (
	KindNone Kind = iota
	// KindMiss: the key is absent.
	KindMiss
	// KindStale: the entry exists but its TTL or version no longer matches.
	KindStale
	// KindCorrupt: the stored value does not decode.
	KindCorrupt
	// KindQuota: the store refused a write for lack of space.
	KindQuota
	// KindStore: any other backend failure (disabled, I/O, encode errors).
	KindStore
)

var (
	ErrMiss    = errors.New("cache miss")
	ErrStale   = errors.New("cache entry stale")
	ErrCorrupt = errors.New("cache entry corrupt")
	ErrQuota   = errors.New("cache quota exceeded")
	ErrStore   = errors.New("cache store failure")
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMiss:
		return "miss"
	case KindStale:
		return "stale"
	case KindCorrupt:
		return "corrupt"
	case KindQuota:
		return "quota"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Unrecognised non-nil errors are KindStore.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMiss):
		return KindMiss
	case errors.Is(err, ErrStale):
		return KindStale
	case errors.Is(err, ErrCorrupt):
		return KindCorrupt
	case errors.Is(err, ErrQuota), errors.Is(err, storage.ErrQuotaExceeded):
		return KindQuota
	default:
		return KindStore
	}
}

// FromStore wraps a raw store error with its cache category.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrQuotaExceeded) {
		return errors.Join(ErrQuota, err)
	}
	return errors.Join(ErrStore, err)
}
