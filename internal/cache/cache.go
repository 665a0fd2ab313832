// Package cache holds rendered API responses in process so repeated reads of
// the same endpoint skip the persistent caches and their JSON decoding.
package cache

import "time"

// Cache defines the interface for caching serialized responses with TTL.
type Cache interface {
	// Get returns the value and true if present and not expired.
	Get(key string) ([]byte, bool)

	// Set stores a value. A TTL of 0 uses the cache default.
	Set(key string, value []byte, ttl time.Duration)

	Delete(key string)

	Clear()

	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	KeysAdded uint64 `json:"keysAdded"`
	Evictions uint64 `json:"evictions"`
	Size      int64  `json:"sizeBytes"` // approximate
	Items     int64  `json:"items"`
}
