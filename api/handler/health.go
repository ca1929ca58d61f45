package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/models"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0"

// Health returns a handler for GET /healthz.
//
// Reports pool utilisation and degrades status when > 80% of pages are
// active. browser may be nil when the browser never launched.
func Health(browser *fetch.BrowserFetcher, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		if browser != nil {
			stats = browser.Stats()
		}

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
