package config

import (
	"os"
	"strings"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	HTTPAddr string
	// Persistent store
	StoreBackend     string        // memory, sqlite or postgres
	SQLitePath       string        // database file for the sqlite backend
	DatabaseURL      string        // connection string for the postgres backend
	StoreQuotaBytes  int64         // 0 = unbounded
	StoreStmtTimeout time.Duration // per-statement bound for SQL backends
	// GitHub stats cache (keyed TTL cache)
	GitHubCachePrefix string
	GitHubDefaultTTL  time.Duration
	GitHubTTLs        map[string]time.Duration
	GitHubRepo        string // owner/name
	GitHubToken       string
	GitHubAPIURL      string
	// Lyrics cache (content-addressed cache)
	LyricsCachePrefix  string
	LyricsIndexKey     string
	LyricsMaxEntries   int
	LyricsTTL          time.Duration
	LyricsCacheVersion int
	LRCLibAPIURL       string
	// Upstream HTTP
	HTTPMaxRetries int
	HTTPRetryBase  time.Duration
	HTTPTimeout    time.Duration
	LogHTTPRetries bool
	UpstreamRPS    float64
	UpstreamBurst  int
	// In-process response cache
	ResponseCacheMaxMB      int64
	ResponseCacheMaxEntries int64
	ResponseCacheTTL        time.Duration
	// Security settings
	RateLimitGlobal      float64 // requests per second globally
	RateLimitGlobalBurst int     // burst size for global rate limit
	RateLimitPerIP       float64 // requests per second per IP
	RateLimitPerIPBurst  int     // burst size for per-IP rate limit
	EnableRateLimit      bool
	// Background jobs; an empty schedule disables the job
	GitHubWarmSchedule string // e.g. "@every 10m"
	CacheStatsSchedule string
	// Stats websocket and browser access
	StatsPushInterval  time.Duration
	CORSAllowedOrigins []string
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
	// ConfigErrors collects non-fatal parse problems so binaries can log them.
	ConfigErrors []string
}

// DefaultGitHubTTLs is the per-action freshness table used when GITHUB_CACHE_TTLS is unset.
func DefaultGitHubTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		"repo-info":    30 * time.Minute,
		"commits":      5 * time.Minute,
		"contributors": 60 * time.Minute,
		"releases":     30 * time.Minute,
		"branches":     15 * time.Minute,
		"languages":    60 * time.Minute,
	}
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		HTTPAddr:          utils.GetEnvAsString("HTTP_ADDR", ":8000"),
		StoreBackend:      strings.ToLower(utils.GetEnvAsString("STORE_BACKEND", "memory")),
		SQLitePath:        utils.GetEnvAsString("STORE_SQLITE_PATH", "jukebox-cache.db"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StoreQuotaBytes:   utils.GetEnvAsInt64("STORE_QUOTA_BYTES", 5*1024*1024),
		StoreStmtTimeout:  utils.GetEnvAsMillis("STORE_STATEMENT_TIMEOUT_MS", 5000),
		GitHubCachePrefix: utils.GetEnvAsString("GITHUB_CACHE_PREFIX", "github_cache_"),
		GitHubDefaultTTL:  time.Duration(utils.GetEnvAsInt("GITHUB_CACHE_DEFAULT_TTL_MIN", 15)) * time.Minute,
		GitHubTTLs:        DefaultGitHubTTLs(),
		GitHubRepo:        utils.GetEnvAsString("GITHUB_REPO", "B0ttl3/TSiJUKEBOX"),
		GitHubToken:       strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubAPIURL:      strings.TrimRight(utils.GetEnvAsString("GITHUB_API_URL", "https://api.github.com"), "/"),
		// Lyrics cache defaults mirror the browser-side cache constants
		LyricsCachePrefix:  utils.GetEnvAsString("LYRICS_CACHE_PREFIX", "lyrics_cache_"),
		LyricsMaxEntries:   utils.GetEnvAsInt("LYRICS_CACHE_MAX_ENTRIES", 100),
		LyricsTTL:          time.Duration(utils.GetEnvAsInt("LYRICS_CACHE_TTL_HOURS", 7*24)) * time.Hour,
		LyricsCacheVersion: utils.GetEnvAsInt("LYRICS_CACHE_VERSION", 1),
		LRCLibAPIURL:       strings.TrimRight(utils.GetEnvAsString("LRCLIB_API_URL", "https://lrclib.net"), "/"),
		HTTPMaxRetries:     utils.GetEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPRetryBase:      utils.GetEnvAsMillis("HTTP_RETRY_BASE_MS", 300),
		HTTPTimeout:        utils.GetEnvAsMillis("HTTP_TIMEOUT_MS", 15000),
		LogHTTPRetries:     utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),
		UpstreamRPS:        utils.GetEnvAsFloat("UPSTREAM_RPS", 5.0),
		UpstreamBurst:      utils.GetEnvAsInt("UPSTREAM_BURST", 6),
		// Response cache: short-lived rendered JSON in front of the handlers
		ResponseCacheMaxMB:      utils.GetEnvAsInt64("RESPONSE_CACHE_MAX_MB", 16),
		ResponseCacheMaxEntries: utils.GetEnvAsInt64("RESPONSE_CACHE_MAX_ENTRIES", 1000),
		ResponseCacheTTL:        time.Duration(utils.GetEnvAsInt("RESPONSE_CACHE_TTL_SEC", 30)) * time.Second,
		RateLimitGlobal:         utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst:    utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:          utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:     utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:         utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		GitHubWarmSchedule:      strings.TrimSpace(os.Getenv("GITHUB_WARM_SCHEDULE")),
		CacheStatsSchedule:      utils.GetEnvAsString("CACHE_STATS_SCHEDULE", "@every 1m"),
		StatsPushInterval:       utils.GetEnvAsMillis("STATS_PUSH_INTERVAL_MS", 5000),
		CORSAllowedOrigins:      utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}, ","),
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	cached.LyricsIndexKey = utils.GetEnvAsString("LYRICS_CACHE_INDEX_KEY", cached.LyricsCachePrefix+"index")

	if raw := strings.TrimSpace(os.Getenv("GITHUB_CACHE_TTLS")); raw != "" {
		table, err := utils.ParseMinuteTable(raw)
		if err != nil {
			cached.ConfigErrors = append(cached.ConfigErrors, "GITHUB_CACHE_TTLS: "+err.Error())
		} else {
			for k, v := range table {
				cached.GitHubTTLs[k] = v
			}
		}
	}
	if cached.GitHubDefaultTTL <= 0 {
		cached.GitHubDefaultTTL = 15 * time.Minute
	}
	if cached.LyricsMaxEntries < 1 {
		cached.ConfigErrors = append(cached.ConfigErrors, "LYRICS_CACHE_MAX_ENTRIES must be >= 1")
		cached.LyricsMaxEntries = 100
	}
	switch cached.StoreBackend {
	case "memory", "sqlite", "postgres":
	default:
		cached.ConfigErrors = append(cached.ConfigErrors, "unknown STORE_BACKEND "+cached.StoreBackend+", using memory")
		cached.StoreBackend = "memory"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
