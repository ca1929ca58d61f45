package models

// Cookie is a cookie applied before navigation.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value" binding:"required"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Action is one step of a scripted browser interaction.
type Action struct {
	// Type is one of: wait, click, scroll, type, fill, select, press,
	// hover, waitForSelector, screenshot.
	Type string `json:"type" binding:"required,oneof=wait click scroll type fill select press hover waitForSelector screenshot"`

	// Selector targets an element for click/type/fill/select/hover/waitForSelector.
	Selector string `json:"selector,omitempty"`

	// Milliseconds is the sleep duration for wait actions.
	Milliseconds int `json:"milliseconds,omitempty"`

	// Text is the input for type and fill actions.
	Text string `json:"text,omitempty"`

	// Value is the option value for select actions.
	Value string `json:"value,omitempty"`

	// Key is the keyboard key for press actions (e.g. "Enter").
	Key string `json:"key,omitempty"`

	// Direction is "up" or "down" for scroll actions.
	Direction string `json:"direction,omitempty"`

	// Amount is the number of viewports to scroll.
	Amount int `json:"amount,omitempty"`
}

// PeelRequest is the payload for POST /v1/peel and POST /v1/scrape.
// PeelRequest also nests inside CrawlRequest and BatchRequest as the
// per-page options, where URL stays empty and is filled from the parent,
// so URL presence is enforced by the peel handler rather than the binding.
type PeelRequest struct {
	// URL is the target page. Required on /v1/peel and /v1/scrape.
	URL string `json:"url" binding:"omitempty,url"`

	// ForceBrowser skips the plain HTTP attempt and goes straight to the
	// headless browser.
	ForceBrowser bool `json:"force_browser,omitempty"`

	// Stealth enables anti-fingerprinting hardening (implies browser).
	Stealth bool `json:"stealth,omitempty"`

	// Screenshot captures a PNG of the rendered page (implies browser).
	Screenshot bool `json:"screenshot,omitempty"`

	// WaitMs pauses after navigation before extracting content.
	WaitMs int `json:"wait_ms,omitempty" binding:"omitempty,min=0,max=60000"`

	// WaitForSelector blocks until the CSS selector matches an element.
	WaitForSelector string `json:"wait_for_selector,omitempty"`

	// TimeoutMs bounds each strategy attempt. Default: 30000. Max: 120000.
	TimeoutMs int `json:"timeout_ms,omitempty" binding:"omitempty,min=1000,max=120000"`

	// UserAgent overrides the default user agent.
	UserAgent string `json:"user_agent,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `json:"headers,omitempty"`

	// Cookies are applied before navigation.
	Cookies []Cookie `json:"cookies,omitempty"`

	// Actions is an ordered list of browser interactions (implies browser).
	Actions []Action `json:"actions,omitempty"`

	// KeepPageOpen hands page ownership to the caller; the pool reclaims
	// the page after an idle grace period if it is never released.
	KeepPageOpen bool `json:"keep_page_open,omitempty"`

	// Device selects a viewport profile: desktop, mobile, or tablet.
	Device string `json:"device,omitempty" binding:"omitempty,oneof=desktop mobile tablet"`

	// BlockResources lists resource classes the browser should not load:
	// image, stylesheet, font, media, script.
	BlockResources []string `json:"block_resources,omitempty" binding:"omitempty,dive,oneof=image stylesheet font media script"`

	// Location is a hint for the edge-worker egress region.
	Location string `json:"location,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *PeelRequest) Defaults() {
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 30000
	}
	if r.Device == "" {
		r.Device = "desktop"
	}
}

// CrawlRequest is the payload for POST /v1/crawl.
type CrawlRequest struct {
	// URL is the starting page. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxDepth limits crawl depth from the start URL. Default: 3. Max: 10.
	MaxDepth int `json:"max_depth,omitempty" binding:"omitempty,min=1,max=10"`

	// MaxPages limits the total pages fetched. Default: 100. Max: 500.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=500"`

	// Scope controls which links are followed: "domain" (same host),
	// "subdomain" (same base domain), "page" (no link following).
	// Default: "subdomain".
	Scope string `json:"scope,omitempty" binding:"omitempty,oneof=domain subdomain page"`

	// ExcludePatterns is a list of glob patterns for paths to skip.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// Resume continues a previously checkpointed crawl with the same
	// start URL and options instead of starting over.
	Resume bool `json:"resume,omitempty"`

	// Options are the per-page fetch settings.
	Options PeelRequest `json:"options,omitempty"`

	// Webhook receives job lifecycle events.
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *CrawlRequest) Defaults() {
	if r.MaxDepth == 0 {
		r.MaxDepth = 3
	}
	if r.MaxPages == 0 {
		r.MaxPages = 100
	}
	if r.Scope == "" {
		r.Scope = "subdomain"
	}
	if r.Options.URL == "" {
		r.Options.URL = r.URL
	}
	r.Options.Defaults()
}

// BatchRequest is the payload for POST /v1/batch.
type BatchRequest struct {
	// URLs is the list of target pages. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100,dive,url"`

	// Options are shared fetch settings applied to every URL.
	Options PeelRequest `json:"options,omitempty"`

	// Webhook receives job lifecycle events.
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

// MapRequest is the payload for POST /v1/map.
type MapRequest struct {
	// URL is the site to enumerate. Required.
	URL string `json:"url" binding:"required,url"`

	// Limit caps the number of returned URLs. Default: 5000.
	Limit int `json:"limit,omitempty" binding:"omitempty,min=1,max=30000"`
}

// WatchRequest is the payload for POST /v1/watch.
type WatchRequest struct {
	// URL is the page to track. Required.
	URL string `json:"url" binding:"required,url"`

	// Threshold is the Hamming-distance above which the page counts as
	// changed. Default: 3.
	Threshold int `json:"threshold,omitempty" binding:"omitempty,min=0,max=64"`
}
