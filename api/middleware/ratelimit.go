package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/ratelimit"
)

// RateLimit returns sliding-window rate limiting middleware. The limit
// headers are set on every response, allowed or not:
//
//	X-RateLimit-Limit:     window budget
//	X-RateLimit-Remaining: requests left in the current window
//	X-RateLimit-Reset:     unix seconds when the window resets
//
// Denied requests get a 429 with a Retry-After header and a retryAfter
// field in the body.
func RateLimit(limiter *ratelimit.Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identify(c)
		d := limiter.Check(id, limit)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(d.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorEnvelope{
				Error:      models.KindRateLimited,
				Message:    "rate limit exceeded, please slow down",
				RetryAfter: d.RetryAfter,
			})
			return
		}
		c.Next()
	}
}

// identify picks the rate-limit identifier: the API key when present,
// otherwise the most trustworthy client IP available.
func identify(c *gin.Context) string {
	if key, ok := c.Get(CtxAPIKey); ok {
		if s, _ := key.(string); s != "" {
			return s
		}
	}
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
