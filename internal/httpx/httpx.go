// Package httpx performs upstream HTTP calls with bounded retries, honouring
// Retry-After and the caller's context.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
)

// ErrExhausted is returned when every attempt failed without a response.
var ErrExhausted = errors.New("httpx: exhausted retries")

// PreAttempt lets callers run logic (e.g., rate limiting) before each try; return an error to abort.
type PreAttempt func(ctx context.Context, attempt int) error

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt int
	Method  string
	URL     string
	Status  int
	Err     error
	Wait    time.Duration
}

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// Builder creates a fresh request for each attempt.
type Builder func(ctx context.Context) (*http.Request, error)

// DoWithRetryFactory sends the request built by build, retrying 429 and 5xx
// responses and transport errors up to HTTP_MAX_RETRIES attempts.
func DoWithRetryFactory(ctx context.Context, client *http.Client, provider string, build Builder, pre PreAttempt) (*http.Response, error) {
	return DoWithRetryFactoryObs(ctx, client, provider, build, pre, nil)
}

// DoWithRetryFactoryObs is like DoWithRetryFactory but reports attempts to an observer.
// The final 429/5xx response is returned as-is once attempts run out.
func DoWithRetryFactoryObs(ctx context.Context, client *http.Client, provider string, build Builder, pre PreAttempt, obs Observer) (*http.Response, error) {
	cfg := config.Load()
	maxAttempts := cfg.HTTPMaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := cfg.HTTPRetryBase
	log := logger.WithComponent("httpx").With("provider", provider)
	report := func(info AttemptInfo) {
		if obs != nil {
			obs(info)
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if pre != nil {
			if err := pre(ctx, attempt); err != nil {
				return nil, err
			}
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		info := AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String()}

		resp, err := client.Do(req)
		if err != nil {
			metrics.UpstreamHTTPRequests.WithLabelValues(provider, "error").Inc()
			info.Err = err
			if attempt == maxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if cfg.LogHTTPRetries {
					log.Info("request failed, no more retries", "attempt", attempt, "method", info.Method, "url", info.URL, "error", err)
				}
				report(info)
				return nil, err
			}
			metrics.UpstreamHTTPRetries.WithLabelValues(provider).Inc()
		} else {
			info.Status = resp.StatusCode
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				metrics.UpstreamHTTPRequests.WithLabelValues(provider, "success").Inc()
				if cfg.LogHTTPRetries && attempt > 1 {
					log.Info("request succeeded after retry", "attempt", attempt, "method", info.Method, "url", info.URL, "status", resp.StatusCode)
				}
				report(info)
				return resp, nil
			}
			metrics.UpstreamHTTPRequests.WithLabelValues(provider, "retry").Inc()
			if attempt == maxAttempts {
				if cfg.LogHTTPRetries {
					log.Info("giving up", "attempt", attempt, "method", info.Method, "url", info.URL, "status", resp.StatusCode)
				}
				report(info)
				return resp, nil
			}
			if wait, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				resp.Body.Close()
				metrics.UpstreamRetryAfterWaits.Observe(wait.Seconds())
				if cfg.LogHTTPRetries {
					log.Info("honouring Retry-After", "attempt", attempt, "wait", wait, "url", info.URL)
				}
				info.Wait = wait
				report(info)
				if err := sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			resp.Body.Close()
			metrics.UpstreamHTTPRetries.WithLabelValues(provider).Inc()
		}

		// backoff with jitter
		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		delay := baseDelay*time.Duration(attempt) + jitter
		if cfg.LogHTTPRetries {
			log.Info("backing off", "attempt", attempt, "delay", delay, "method", info.Method, "url", info.URL)
		}
		info.Wait = delay
		report(info)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, ErrExhausted
}

// retryAfter parses a Retry-After header given either as seconds or as an HTTP date.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
