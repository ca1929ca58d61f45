// Package api wires the HTTP surface: routes, middleware, and handlers.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webpeel/webpeel/api/handler"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/crawler"
	"github.com/webpeel/webpeel/engine"
	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/jobs"
	"github.com/webpeel/webpeel/ratelimit"
	"github.com/webpeel/webpeel/watch"
)

// Deps carries everything the router needs.
type Deps struct {
	Engine      *engine.Engine
	Crawler     *crawler.Crawler
	Jobs        *jobs.Queue
	Watch       *watch.Store
	Browser     *fetch.BrowserFetcher
	RateLimiter *ratelimit.Limiter
	StartTime   time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics endpoints sit outside auth so probes always work.
func NewRouter(d Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	gin.EnableJsonDecoderDisallowUnknownFields()
	handler.SetVerbose(!cfg.Server.Production)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics())

	r.GET("/healthz", handler.Health(d.Browser, d.StartTime))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	if cfg.Auth.Enabled {
		v1.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	v1.Use(middleware.RateLimit(d.RateLimiter, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window))

	// Single page fetch. /scrape is the compatibility alias.
	v1.POST("/peel", handler.Peel(d.Engine))
	v1.POST("/scrape", handler.Peel(d.Engine))

	// Crawl
	v1.POST("/crawl", handler.PostCrawl(d.Crawler, d.Jobs))
	v1.GET("/crawl/:jobId", handler.GetCrawl(d.Jobs))
	v1.DELETE("/crawl/:jobId", handler.CancelCrawl(d.Jobs))

	// Batch
	v1.POST("/batch", handler.PostBatch(d.Crawler, d.Jobs))
	v1.GET("/batch/:jobId", handler.GetBatch(d.Jobs))

	// Jobs overview
	v1.GET("/jobs", handler.ListJobs(d.Jobs))

	// Map
	v1.POST("/map", handler.PostMap(d.Crawler))

	// Watch
	v1.GET("/watch", handler.GetWatch(d.Engine, d.Watch))
	v1.POST("/watch", handler.PostWatch(d.Engine, d.Watch))

	// Collaborator-backed endpoints.
	v1.POST("/youtube", handler.AgentProxy(cfg.Agent, "/youtube"))
	v1.POST("/answer", handler.AgentProxy(cfg.Agent, "/answer"))
	v1.POST("/agent", handler.AgentProxy(cfg.Agent, "/agent"))
	v1.POST("/agent/async", handler.AgentProxy(cfg.Agent, "/agent/async"))
	v1.POST("/agent/stream", handler.AgentStream(cfg.Agent))

	// Needs a persistent auth and usage store.
	v1.GET("/activity", handler.NotImplemented("activity reporting requires a persistent usage store"))

	return r
}
