package metrics

// CacheRecorder receives cache lifecycle events.
type CacheRecorder interface {
	Hit()
	Miss()
	Stale()
	Evicted(n int)
	Failed(kind string)
	Observe(entries int, sizeBytes int64)
}

// NoopRecorder ignores every event.
type NoopRecorder struct{}

func (NoopRecorder) Hit() {}
func (NoopRecorder) Miss() {}
func (NoopRecorder) Stale() {}
func (NoopRecorder) Evicted(int) {}
func (NoopRecorder) Failed(string) {}
func (NoopRecorder) Observe(int, int64) {}

// promRecorder forwards events to the jukebox_cache_* families.
type promRecorder struct {
	name string
}

// ForCache returns a Prometheus-backed recorder labelled with name.
func ForCache(name string) CacheRecorder {
	return promRecorder{name: name}
}

func (p promRecorder) Hit()   { CacheHits.WithLabelValues(p.name).Inc() }
func (p promRecorder) Miss()  { CacheMisses.WithLabelValues(p.name).Inc() }
func (p promRecorder) Stale() { CacheStale.WithLabelValues(p.name).Inc() }

func (p promRecorder) Evicted(n int) {
	CacheEvictions.WithLabelValues(p.name).Add(float64(n))
}

func (p promRecorder) Failed(kind string) {
	CacheErrors.WithLabelValues(p.name, kind).Inc()
}

func (p promRecorder) Observe(entries int, sizeBytes int64) {
	CacheEntries.WithLabelValues(p.name).Set(float64(entries))
	CacheSizeBytes.WithLabelValues(p.name).Set(float64(sizeBytes))
}
