// Package fetch contains the page-acquisition strategies: plain HTTP,
// headless browser, stealth browser, public mirror, and edge worker.
// All strategies share one contract so the escalation engine can switch
// between them.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/webpeel/webpeel/models"
)

// Strategy method names, recorded on every Result.
const (
	MethodSimple     = "simple"
	MethodBrowser    = "browser"
	MethodStealth    = "stealth"
	MethodMirror     = "mirror"
	MethodEdgeWorker = "edge-worker"
)

// DefaultTimeout bounds one strategy attempt when the caller sets none.
const DefaultTimeout = 30 * time.Second

// Options carries everything a strategy needs beyond the URL.
type Options struct {
	// ForceBrowser skips the plain HTTP attempt entirely.
	ForceBrowser bool

	TimeoutMs       int
	UserAgent       string
	Headers         map[string]string
	Cookies         []models.Cookie
	WaitMs          int
	WaitForSelector string
	Actions         []models.Action
	Screenshot      bool
	KeepPageOpen    bool
	Device          string
	BlockResources  []string
	Location        string
	Stealth         bool
}

// Timeout returns the per-attempt deadline.
func (o *Options) Timeout() time.Duration {
	if o == nil || o.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// Result is the output of a successful fetch. It is immutable once
// produced; the cache keeps the canonical copy and hands it to callers
// read-only.
type Result struct {
	FinalURL    string
	StatusCode  int
	Body        []byte
	ContentType string
	Headers     http.Header
	Duration    time.Duration
	Method      string
	Screenshot  []byte
	Mirror      *models.MirrorInfo
}

// Fetcher is the common capability all strategies implement.
type Fetcher interface {
	// Name returns the strategy identifier.
	Name() string

	// Fetch retrieves the page. Errors are *models.PeelError values with
	// kinds timeout, blocked, network, invalid_url, or not_implemented.
	Fetch(ctx context.Context, url string, opts *Options) (*Result, error)
}
