package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/engine"
	"github.com/webpeel/webpeel/models"
)

// Peel returns a handler for POST /v1/peel (and its /v1/scrape alias).
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Engine.Peel runs the escalation chain, consulting the cache.
//  3. Build the response: title, fingerprint, links, screenshot.
func Peel(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PeelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		// The binding leaves URL optional because PeelRequest doubles as
		// nested crawl/batch options; on this endpoint it is mandatory.
		if req.URL == "" {
			respondError(c, models.NewPeelError(models.KindInvalidRequest, "url is required", nil))
			return
		}
		req.Defaults()

		res, cacheStatus, err := eng.Peel(c.Request.Context(), req.URL, engine.OptionsFrom(&req))
		if err != nil {
			middleware.ObserveFetch("none", cacheStatus)
			respondError(c, err)
			return
		}

		middleware.ObserveFetch(res.Method, cacheStatus)
		c.JSON(http.StatusOK, engine.BuildResponse(req.URL, res, cacheStatus, true))
	}
}
