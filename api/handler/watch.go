package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/engine"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/simhash"
	"github.com/webpeel/webpeel/watch"
)

// PostWatch returns a handler for POST /v1/watch: fetch the page, compare
// its fingerprint against the previous snapshot, and record the new state.
func PostWatch(eng *engine.Engine, store *watch.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.WatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		checkWatch(c, eng, store, req.URL, req.Threshold)
	}
}

// GetWatch returns a handler for GET /v1/watch. With ?check=true it runs a
// fresh comparison, otherwise it reports the last recorded snapshot.
func GetWatch(eng *engine.Engine, store *watch.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawURL := c.Query("url")
		if rawURL == "" {
			c.JSON(http.StatusBadRequest, models.ErrorEnvelope{
				Error:   models.KindInvalidRequest,
				Message: "url query parameter is required",
			})
			return
		}

		if c.Query("check") == "true" {
			threshold, _ := strconv.Atoi(c.Query("threshold"))
			checkWatch(c, eng, store, rawURL, threshold)
			return
		}

		last, err := store.Last(rawURL)
		if err != nil {
			respondError(c, err)
			return
		}
		if last == nil {
			respondNotFound(c, "url has never been checked")
			return
		}
		c.JSON(http.StatusOK, last)
	}
}

func checkWatch(c *gin.Context, eng *engine.Engine, store *watch.Store, rawURL string, threshold int) {
	req := models.PeelRequest{URL: rawURL}
	req.Defaults()
	res, _, err := eng.Peel(c.Request.Context(), rawURL, engine.OptionsFrom(&req))
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := store.Check(rawURL, simhash.FingerprintBytes(res.Body), threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
