package models

// PeelResponse is the response for POST /v1/peel and /v1/scrape, and the
// per-page record inside crawl and batch jobs.
type PeelResponse struct {
	// Success indicates whether the fetch completed without errors.
	Success bool `json:"success"`

	// URL is the requested URL.
	URL string `json:"url"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP status code from the target page.
	StatusCode int `json:"status_code,omitempty"`

	// Title is the page title, when the content is HTML.
	Title string `json:"title,omitempty"`

	// Content is the raw page content.
	Content string `json:"content,omitempty"`

	// ContentType is the detected content type of Content.
	ContentType string `json:"content_type,omitempty"`

	// Method names the strategy that produced the result:
	// simple, browser, stealth, mirror, or edge-worker.
	Method string `json:"method,omitempty"`

	// Fingerprint is the 64-bit simhash of the page text, hex-encoded.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Screenshot is the base64-encoded PNG, when requested.
	Screenshot string `json:"screenshot,omitempty"`

	// Links are the outbound links discovered on the page.
	Links []string `json:"links,omitempty"`

	// Mirror carries provenance when the result came from a mirror copy.
	Mirror *MirrorInfo `json:"mirror,omitempty"`

	// Cache indicates how the response relates to the cache:
	// "hit", "stale", "miss", or empty when the cache was bypassed.
	Cache string `json:"cache,omitempty"`

	// DurationMs is the end-to-end fetch duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Error is populated only when Success is false.
	Error *ErrorEnvelope `json:"error,omitempty"`
}

// MirrorInfo records where a mirror result came from.
type MirrorInfo struct {
	Source   string `json:"source"`
	CachedAt string `json:"cached_at,omitempty"`
}

// JobStatusResponse is the response for GET /v1/crawl/:jobId and
// GET /v1/batch/:jobId.
type JobStatusResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Completed   int             `json:"completed"`
	Total       int             `json:"total"`
	CreditsUsed int             `json:"credits_used"`
	Data        []*PeelResponse `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// JobAcceptedResponse is the immediate response for POST /v1/crawl and
// POST /v1/batch.
type JobAcceptedResponse struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Total  int    `json:"total,omitempty"`
}

// MapResponse is the response for POST /v1/map.
type MapResponse struct {
	Success bool           `json:"success"`
	URLs    []string       `json:"urls"`
	Total   int            `json:"total"`
	Error   *ErrorEnvelope `json:"error,omitempty"`
}

// WatchResponse is the response for GET and POST /v1/watch.
type WatchResponse struct {
	URL         string `json:"url"`
	Changed     bool   `json:"changed"`
	Distance    int    `json:"distance"`
	Fingerprint string `json:"fingerprint"`
	FirstCheck  bool   `json:"first_check,omitempty"`
	CheckedAt   string `json:"checked_at"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
