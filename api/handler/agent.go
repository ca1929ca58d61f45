package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/sse"
)

// agentClient forwards requests to the agent collaborator service. Agent
// runs can take minutes, so the timeout is generous.
var agentClient = &http.Client{Timeout: 5 * time.Minute}

// AgentProxy returns a handler that forwards the request body to the
// collaborator at path and relays the JSON response. Returns 501 when no
// collaborator is configured.
func AgentProxy(cfg config.AgentConfig, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.URL == "" {
			notImplemented(c, "agent collaborator is not configured")
			return
		}

		resp, err := forward(c, cfg, path)
		if err != nil {
			respondError(c, models.NewPeelError(models.KindNetwork, "agent collaborator unreachable", err))
			return
		}
		defer resp.Body.Close()

		c.DataFromReader(resp.StatusCode, resp.ContentLength,
			resp.Header.Get("Content-Type"), resp.Body, nil)
	}
}

// AgentStream returns a handler for POST /v1/agent/stream: forwards the
// request and relays the collaborator's SSE frames to the client.
func AgentStream(cfg config.AgentConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.URL == "" {
			notImplemented(c, "agent collaborator is not configured")
			return
		}

		resp, err := forward(c, cfg, "/agent/stream")
		if err != nil {
			respondError(c, models.NewPeelError(models.KindNetwork, "agent collaborator unreachable", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			respondError(c, models.NewPeelError(models.KindNetwork,
				"agent collaborator returned "+resp.Status+": "+string(body), nil))
			return
		}

		sse.SetHeaders(c.Writer.Header())
		c.Status(http.StatusOK)
		if err := sse.Proxy(c.Writer, resp.Body); err != nil {
			// Headers are gone; all we can do is stop the stream.
			return
		}
	}
}

// NotImplemented returns a handler for endpoints whose backing service does
// not exist in this deployment.
func NotImplemented(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		notImplemented(c, msg)
	}
}

func notImplemented(c *gin.Context, msg string) {
	c.JSON(http.StatusNotImplemented, models.ErrorEnvelope{
		Error:   models.KindNotImplemented,
		Message: msg,
	})
}

func forward(c *gin.Context, cfg config.AgentConfig, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(),
		c.Request.Method, cfg.URL+path, c.Request.Body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", c.GetHeader("Content-Type"))
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return agentClient.Do(req)
}
