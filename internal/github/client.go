package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tsijukebox/jukebox-backend/internal/circuitbreaker"
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/httpx"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
)

const provider = "github"

// maxBodyBytes bounds a decoded API response.
const maxBodyBytes = 4 << 20

// ErrUnknownAction is returned for actions outside Actions.
var ErrUnknownAction = errors.New("github: unknown action")

// Client reads repository statistics from the GitHub REST API.
type Client struct {
	baseURL string
	repo    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

// NewClient builds a client for GITHUB_REPO against GITHUB_API_URL.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.GitHubAPIURL,
		repo:    cfg.GitHubRepo,
		token:   cfg.GitHubToken,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: httpx.NewLimiter(cfg),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name: provider,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled) && !httpx.IsNotFound(err)
			},
		}),
	}
}

// Repo returns the owner/name the client reads.
func (c *Client) Repo() string { return c.repo }

// Fetch returns the typed payload for action, or nil when GitHub answers null.
func (c *Client) Fetch(ctx context.Context, action string) (any, error) {
	p := path(c.repo, action)
	if p == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	start := time.Now()
	defer func() {
		metrics.UpstreamFetchDuration.WithLabelValues(provider, action).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		build := func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+p, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/vnd.github+json")
			req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
			req.Header.Set("User-Agent", "tsijukebox-backend")
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			return req, nil
		}
		resp, err := httpx.DoWithRetryFactory(ctx, c.http, provider, build, httpx.Paced(c.limiter))
		if err != nil {
			return err
		}
		if err := httpx.CheckStatus(resp, provider); err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", provider, action, err)
	}
	return decode(action, body)
}

func decode(action string, body []byte) (any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	v := newValue(action)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", provider, action, err)
	}
	return v, nil
}
