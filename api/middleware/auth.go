package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/models"
)

// Context keys set by the auth middleware.
const (
	CtxAPIKey = "api_key"
	CtxPlan   = "plan"
)

// Auth returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// If apiKeys is empty, the middleware is a no-op (open access). The
// caller's plan tier is taken from X-WebPeel-Plan and defaults to "free".
func Auth(apiKeys []string) gin.HandlerFunc {
	if len(apiKeys) == 0 {
		return func(c *gin.Context) {
			c.Set(CtxPlan, planOf(c))
			c.Next()
		}
	}

	keySet := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keySet[k] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			abortError(c, http.StatusUnauthorized, models.KindAuthRequired,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if _, valid := keySet[key]; !valid {
			abortError(c, http.StatusUnauthorized, models.KindAuthRequired, "invalid API key")
			return
		}

		c.Set(CtxAPIKey, key)
		c.Set(CtxPlan, planOf(c))
		c.Next()
	}
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func planOf(c *gin.Context) string {
	if plan := c.GetHeader("X-WebPeel-Plan"); plan != "" {
		return plan
	}
	return "free"
}

// abortError writes the standard error envelope and stops the chain.
func abortError(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorEnvelope{
		Error:   kind,
		Message: msg,
	})
}
