package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tsijukebox/jukebox-backend/internal/circuitbreaker"
	"github.com/tsijukebox/jukebox-backend/internal/config"
	"github.com/tsijukebox/jukebox-backend/internal/httpx"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
)

const provider = "lrclib"

const userAgent = "TSiJUKEBOX (https://github.com/B0ttl3/TSiJUKEBOX)"

// record is the LRCLIB /api/get response body.
type record struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  *string `json:"plainLyrics"`
	SyncedLyrics *string `json:"syncedLyrics"`
}

// Client queries the LRCLIB API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

// NewClient builds a client from LRCLIB_API_URL and the upstream HTTP settings.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.LRCLibAPIURL,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: httpx.NewLimiter(cfg),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name: provider,
			// an unknown track is an answer, not an outage
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled) && !httpx.IsNotFound(err)
			},
		}),
	}
}

// Fetch looks up lyrics for track by artist. A track LRCLIB does not know
// yields NotFound with a nil error.
func (c *Client) Fetch(ctx context.Context, track, artist string) (Data, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamFetchDuration.WithLabelValues(provider, "get").Observe(time.Since(start).Seconds())
	}()

	q := url.Values{}
	q.Set("track_name", track)
	q.Set("artist_name", artist)
	endpoint := c.baseURL + "/api/get?" + q.Encode()

	var rec record
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		build := func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", userAgent)
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
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return fmt.Errorf("%s: decode response: %w", provider, err)
		}
		return nil
	})
	if httpx.IsNotFound(err) {
		return NotFound(track, artist), nil
	}
	if err != nil {
		return Data{}, err
	}
	return fromRecord(rec, track, artist), nil
}

func fromRecord(rec record, track, artist string) Data {
	if rec.TrackName != "" {
		track = rec.TrackName
	}
	if rec.ArtistName != "" {
		artist = rec.ArtistName
	}
	d := Data{Source: SourceLRCLib, Lines: []Line{}, TrackName: track, ArtistName: artist}
	if rec.PlainLyrics != nil {
		d.PlainText = strings.TrimSpace(*rec.PlainLyrics)
	}
	if rec.SyncedLyrics != nil && strings.TrimSpace(*rec.SyncedLyrics) != "" {
		if lines := ParseLRC(*rec.SyncedLyrics); len(lines) > 0 {
			d.Synced = true
			d.Lines = lines
			return d
		}
	}
	if d.PlainText != "" {
		d.Lines = PlainLines(d.PlainText)
		return d
	}
	if !rec.Instrumental {
		return NotFound(track, artist)
	}
	return d
}
