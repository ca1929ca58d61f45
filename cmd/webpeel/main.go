package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/webpeel/webpeel/api"
	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/checkpoint"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/crawler"
	"github.com/webpeel/webpeel/dnscache"
	"github.com/webpeel/webpeel/engine"
	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/jobs"
	"github.com/webpeel/webpeel/ratelimit"
	"github.com/webpeel/webpeel/watch"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("webpeel starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. DNS cache, warmed in the background ──────────────────────
	dns := dnscache.New()
	dns.Warmup(context.Background())

	// ── 4. Fetch strategies ─────────────────────────────────────────
	fetchers := engine.Fetchers{
		Plain:  fetch.NewSimpleFetcher(dns),
		Mirror: fetch.NewMirrorFetcher(dns),
	}
	if cfg.Edge.WorkerURL != "" {
		fetchers.Edge = fetch.NewEdgeWorkerFetcher(cfg.Edge.WorkerURL, cfg.Edge.Token)
	}

	// Browser startup failure degrades to HTTP-only operation instead of
	// refusing to boot; headless Chrome is not available everywhere.
	browser, err := fetch.NewBrowserFetcher(fetch.BrowserSettings{
		Headless:  cfg.Browser.Headless,
		NoSandbox: cfg.Browser.NoSandbox,
		Bin:       cfg.Browser.Bin,
		Proxy:     cfg.Browser.Proxy,
		MaxPages:  cfg.Browser.MaxPages,
	})
	if err != nil {
		slog.Error("browser unavailable, running without browser strategies", "error", err)
		browser = nil
	} else {
		defer browser.Close()
		fetchers.Browser = browser
		fetchers.Stealth = fetch.NewStealthFetcher(browser)
	}

	// ── 5. Cache, jobs, state stores ────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	queue := jobs.NewQueue(slog.Default())
	defer queue.Destroy()

	checkpoints, err := checkpoint.NewStore(subdir(cfg.Data.Dir, "checkpoints"))
	if err != nil {
		slog.Error("failed to initialise checkpoint store", "error", err)
		os.Exit(1)
	}
	snapshots, err := watch.NewStore(subdir(cfg.Data.Dir, "snapshots"))
	if err != nil {
		slog.Error("failed to initialise watch store", "error", err)
		os.Exit(1)
	}

	// ── 6. Engine and crawler ───────────────────────────────────────
	eng := engine.New(fetchers, cc, slog.Default())
	cr := crawler.New(eng, queue, checkpoints, slog.Default(),
		cfg.Crawl.Concurrency, cfg.Crawl.PerDomainRPS)

	// ── 7. Rate limiter with background sweep ───────────────────────
	limiter := ratelimit.New(cfg.RateLimit.Window)
	stopSweep := make(chan struct{})
	defer close(stopSweep)
	limiter.StartSweeper(time.Minute, stopSweep)

	// ── 8. Router and HTTP server ───────────────────────────────────
	router := api.NewRouter(api.Deps{
		Engine:      eng,
		Crawler:     cr,
		Jobs:        queue,
		Watch:       snapshots,
		Browser:     browser,
		RateLimiter: limiter,
		StartTime:   time.Now(),
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 10 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser.Close() and queue.Destroy() run via defer.
	slog.Info("webpeel stopped")
}

// subdir joins base and name when base is set, otherwise returns "" so the
// store falls back to its default under ~/.webpeel.
func subdir(base, name string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, name)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
