// Package config loads application configuration from the environment.
// A .env file in the working directory is read first, so local overrides
// do not need to be exported.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Crawl     CrawlConfig
	Edge      EdgeConfig
	Agent     AgentConfig
	Data      DataConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// Production marks the deployment as production. Controls things like
	// trusted-proxy handling.
	Production bool
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// Proxy is the default proxy URL for browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string
}

// FetchConfig controls per-request fetch behavior.
type FetchConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-identifier rate limiting.
type RateLimitConfig struct {
	// RequestsPerWindow is the sliding-window request budget.
	RequestsPerWindow int // default: 60

	// Window is the sliding-window length.
	Window time.Duration // default: 1m
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// CrawlConfig controls crawl jobs.
type CrawlConfig struct {
	// Concurrency is the per-crawl page fan-out.
	Concurrency int // default: 5

	// PerDomainRPS is the politeness rate against any single domain.
	PerDomainRPS float64 // default: 2
}

// EdgeConfig controls the Cloudflare Worker fallback. The fetcher is
// enabled only when WorkerURL is set.
type EdgeConfig struct {
	WorkerURL string
	Token     string
}

// AgentConfig points at the agent collaborator service. Agent endpoints
// return 501 when URL is empty.
type AgentConfig struct {
	URL   string
	Token string
}

// DataConfig controls on-disk state.
type DataConfig struct {
	// Dir is the root for checkpoints and watch snapshots.
	// default: ~/.webpeel
	Dir string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from the environment with sane defaults.
func Load() *Config {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:       envOr("WEBPEEL_HOST", "0.0.0.0"),
			Port:       envIntOr("WEBPEEL_PORT", 8080),
			Mode:       envOr("WEBPEEL_MODE", "release"),
			Production: envOr("WEBPEEL_ENV", "") == "production",
		},
		Browser: BrowserConfig{
			Headless:  envBoolOr("WEBPEEL_HEADLESS", true),
			MaxPages:  envIntOr("WEBPEEL_MAX_PAGES", 10),
			Proxy:     os.Getenv("WEBPEEL_PROXY"),
			NoSandbox: envBoolOr("WEBPEEL_NO_SANDBOX", false),
			Bin:       os.Getenv("WEBPEEL_BROWSER_BIN"),
		},
		Fetch: FetchConfig{
			DefaultTimeout: envDurationOr("WEBPEEL_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("WEBPEEL_MAX_TIMEOUT", 120*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("WEBPEEL_AUTH_ENABLED", true),
			APIKeys: envSliceOr("WEBPEEL_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: envIntOr("WEBPEEL_RATE_LIMIT", 60),
			Window:            envDurationOr("WEBPEEL_RATE_WINDOW", time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("WEBPEEL_CACHE_ENTRIES", 1000),
		},
		Crawl: CrawlConfig{
			Concurrency:  envIntOr("WEBPEEL_CRAWL_CONCURRENCY", 5),
			PerDomainRPS: envFloatOr("WEBPEEL_CRAWL_DOMAIN_RPS", 2.0),
		},
		Edge: EdgeConfig{
			WorkerURL: os.Getenv("WEBPEEL_CF_WORKER_URL"),
			Token:     os.Getenv("WEBPEEL_CF_WORKER_TOKEN"),
		},
		Agent: AgentConfig{
			URL:   os.Getenv("WEBPEEL_AGENT_URL"),
			Token: os.Getenv("WEBPEEL_AGENT_TOKEN"),
		},
		Data: DataConfig{
			Dir: os.Getenv("WEBPEEL_DATA_DIR"),
		},
		Log: LogConfig{
			Level:  envOr("WEBPEEL_LOG_LEVEL", "info"),
			Format: envOr("WEBPEEL_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
