package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/tsijukebox/jukebox-backend/internal/metrics"
)

// CacheHeader reports whether a response came from the response cache.
const CacheHeader = "X-Cache"

type captureWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// bypass reports requests that must reach the handler: non-GET methods and
// explicit refreshes.
func bypass(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return true
	}
	force := strings.TrimSpace(r.URL.Query().Get("force"))
	return force == "1" || strings.EqualFold(force, "true")
}

// Responses serves successful JSON GET responses from c, keyed by request URI.
// endpoint labels the hit and miss counters.
func Responses(c Cache, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c == nil || bypass(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()
			if body, ok := c.Get(key); ok {
				metrics.APICacheHits.WithLabelValues(endpoint).Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(CacheHeader, "HIT")
				_, _ = w.Write(body)
				return
			}
			metrics.APICacheMisses.WithLabelValues(endpoint).Inc()

			w.Header().Set(CacheHeader, "MISS")
			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)
			if cw.status == http.StatusOK && cw.buf.Len() > 0 {
				c.Set(key, bytes.Clone(cw.buf.Bytes()), 0)
			}
		})
	}
}
