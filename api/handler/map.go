package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/crawler"
	"github.com/webpeel/webpeel/models"
)

// PostMap returns a handler for POST /v1/map: fast URL enumeration from
// sitemaps, robots.txt, and homepage links, without fetching every page.
func PostMap(cr *crawler.Crawler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		resp, err := cr.Map(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
