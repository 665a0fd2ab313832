package httpx

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tsijukebox/jukebox-backend/internal/config"
)

// NewLimiter returns a token bucket sized by UPSTREAM_RPS and UPSTREAM_BURST.
// A non-positive rate disables pacing.
func NewLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.UpstreamRPS <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.UpstreamBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), burst)
}

// Paced is a PreAttempt that waits for a token from l before every attempt,
// so retries count against the same budget as first tries.
func Paced(l *rate.Limiter) PreAttempt {
	return func(ctx context.Context, attempt int) error {
		if l == nil {
			return nil
		}
		return l.Wait(ctx)
	}
}
