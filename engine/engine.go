// Package engine decides which fetch strategy serves a request and walks
// the escalation chain when a cheaper strategy fails: plain HTTP, headless
// browser, stealth browser, then the terminal mirror and edge worker
// fallbacks. It also fronts the response cache with stale-while-revalidate.
package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/models"
)

// Cache status values reported alongside a result.
const (
	CacheHit   = "hit"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

// cloudflareRetryWaitMs is the settle time given to a browser retry after a
// cloudflare interstitial.
const cloudflareRetryWaitMs = 5000

// browserHosts always start at the headless browser; plain HTTP is a waste
// of a request against them.
var browserHosts = []string{
	"reddit.com",
}

// stealthHosts always start at the stealth browser.
var stealthHosts = []string{
	"glassdoor.com",
	"bloomberg.com",
}

// Fetchers bundles the strategy implementations the engine escalates
// across. Only Plain is required; missing strategies fall through to the
// terminal fallbacks.
type Fetchers struct {
	Plain   fetch.Fetcher
	Browser fetch.Fetcher
	Stealth fetch.Fetcher
	Mirror  fetch.Fetcher
	Edge    fetch.Fetcher
}

// Engine walks the escalation chain and fronts the response cache.
type Engine struct {
	fetchers Fetchers
	cache    *cache.Cache
	log      *slog.Logger
}

// New creates an Engine. The cache may be nil to disable caching.
func New(fetchers Fetchers, c *cache.Cache, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{fetchers: fetchers, cache: c, log: log}
}

// Peel fetches the page, consulting the cache first. The second return
// value reports how the cache participated: hit, stale, or miss.
//
// A stale entry is served immediately while one background refresh runs
// decoupled from the caller's deadline. Requests with side effects
// (screenshots, actions, cookies, page leases) bypass the cache entirely
// and report miss.
func (e *Engine) Peel(ctx context.Context, rawURL string, opts *fetch.Options) (*fetch.Result, string, error) {
	cacheable := e.cache != nil && isCacheable(opts)

	if cacheable {
		if res, stale := e.cache.GetWithSWR(rawURL); res != nil {
			if !stale {
				return res, CacheHit, nil
			}
			if e.cache.MarkRevalidating(rawURL) {
				go e.refresh(context.WithoutCancel(ctx), rawURL, opts)
			}
			return res, CacheStale, nil
		}
	}

	res, err := e.fetchChain(ctx, rawURL, opts)
	if err != nil {
		return nil, "", err
	}
	if cacheable && res.StatusCode < 300 && res.Method != fetch.MethodMirror {
		e.cache.Set(rawURL, res)
	}
	return res, CacheMiss, nil
}

// refresh revalidates one stale entry in the background. Failures only log;
// the stale copy keeps serving until it ages out of the stale window.
func (e *Engine) refresh(ctx context.Context, rawURL string, opts *fetch.Options) {
	ctx, cancel := context.WithTimeout(ctx, cache.RevalidationTimeout)
	defer cancel()

	res, err := e.fetchChain(ctx, rawURL, opts)
	if err != nil {
		e.log.Warn("background revalidation failed", "url", rawURL, "error", err)
		return
	}
	if res.StatusCode < 300 && res.Method != fetch.MethodMirror {
		e.cache.Set(rawURL, res)
	}
}

// fetchChain runs the escalation chain starting at the strategy the request
// and host call for.
func (e *Engine) fetchChain(ctx context.Context, rawURL string, opts *fetch.Options) (*fetch.Result, error) {
	switch startMethod(rawURL, opts) {
	case fetch.MethodStealth:
		return e.fromStealth(ctx, rawURL, opts)
	case fetch.MethodBrowser:
		return e.fromBrowser(ctx, rawURL, opts)
	default:
		return e.fromPlain(ctx, rawURL, opts)
	}
}

// fromPlain tries plain HTTP first and escalates to the browser on block
// pages, TLS failures, and SPA shells.
func (e *Engine) fromPlain(ctx context.Context, rawURL string, opts *fetch.Options) (*fetch.Result, error) {
	res, err := e.retryingFetch(ctx, e.fetchers.Plain, rawURL, opts)
	if err == nil {
		if looksLikeShell(res.Body, res.ContentType) {
			e.log.Debug("SPA shell detected, escalating to browser", "url", rawURL)
			return e.fromBrowser(ctx, rawURL, opts)
		}
		return res, nil
	}

	switch {
	case models.IsKind(err, models.KindBlocked):
		e.log.Debug("plain fetch blocked, escalating to browser", "url", rawURL)
		return e.fromBrowser(ctx, rawURL, opts)
	case isTLSFailure(err):
		e.log.Debug("TLS failure, escalating to browser", "url", rawURL)
		return e.fromBrowser(ctx, rawURL, opts)
	default:
		return e.fallbacks(ctx, rawURL, opts, err)
	}
}

// fromBrowser runs the headless browser and escalates to stealth when the
// browser itself gets blocked. A cloudflare interstitial earns one browser
// retry with extra settle time before escalating.
func (e *Engine) fromBrowser(ctx context.Context, rawURL string, opts *fetch.Options) (*fetch.Result, error) {
	if e.fetchers.Browser == nil {
		return e.fallbacks(ctx, rawURL, opts,
			models.NewPeelError(models.KindNotImplemented, "browser strategy unavailable", nil))
	}
	res, err := e.fetchers.Browser.Fetch(ctx, rawURL, opts)
	if err == nil {
		return res, nil
	}

	if isCloudflareInterstitial(err) {
		if res, ok := e.retryInterstitial(ctx, e.fetchers.Browser, rawURL, opts); ok {
			return res, nil
		}
	}

	if models.IsKind(err, models.KindBlocked) {
		e.log.Debug("browser blocked, escalating to stealth", "url", rawURL)
		return e.fromStealth(ctx, rawURL, opts)
	}
	return e.fallbacks(ctx, rawURL, opts, err)
}

// fromStealth is the last live strategy before the terminal fallbacks. It
// keeps the patient interstitial retry: a challenge page earns one more
// stealth attempt with extra settle time.
func (e *Engine) fromStealth(ctx context.Context, rawURL string, opts *fetch.Options) (*fetch.Result, error) {
	if e.fetchers.Stealth == nil {
		return e.fallbacks(ctx, rawURL, opts,
			models.NewPeelError(models.KindNotImplemented, "stealth strategy unavailable", nil))
	}
	res, err := e.fetchers.Stealth.Fetch(ctx, rawURL, opts)
	if err == nil {
		return res, nil
	}

	if isCloudflareInterstitial(err) {
		if res, ok := e.retryInterstitial(ctx, e.fetchers.Stealth, rawURL, opts); ok {
			return res, nil
		}
	}
	return e.fallbacks(ctx, rawURL, opts, err)
}

// retryInterstitial reruns a browser strategy once with extra settle time
// after a cloudflare interstitial.
func (e *Engine) retryInterstitial(ctx context.Context, f fetch.Fetcher, rawURL string, opts *fetch.Options) (*fetch.Result, bool) {
	retryOpts := *opts
	if retryOpts.WaitMs < cloudflareRetryWaitMs {
		retryOpts.WaitMs = cloudflareRetryWaitMs
	}
	e.log.Debug("cloudflare interstitial, retrying with settle time", "url", rawURL)
	res, err := f.Fetch(ctx, rawURL, &retryOpts)
	return res, err == nil
}

// fallbacks tries the mirror and then the edge worker. Both are terminal:
// their failures do not escalate further, and the original error is
// returned when neither produces a page.
func (e *Engine) fallbacks(ctx context.Context, rawURL string, opts *fetch.Options, lastErr error) (*fetch.Result, error) {
	if e.fetchers.Mirror != nil {
		res, err := e.fetchers.Mirror.Fetch(ctx, rawURL, opts)
		if err == nil && res != nil {
			e.log.Info("served from mirror", "url", rawURL)
			return res, nil
		}
	}
	if e.fetchers.Edge != nil {
		res, err := e.fetchers.Edge.Fetch(ctx, rawURL, opts)
		if err == nil {
			e.log.Info("served from edge worker", "url", rawURL)
			return res, nil
		}
		if !models.IsKind(err, models.KindNotImplemented) {
			e.log.Warn("edge worker failed", "url", rawURL, "error", err)
		}
	}
	return nil, lastErr
}

// retryingFetch prefers the strategy's own retry ladder when it has one.
func (e *Engine) retryingFetch(ctx context.Context, f fetch.Fetcher, rawURL string, opts *fetch.Options) (*fetch.Result, error) {
	type retrier interface {
		FetchWithRetry(ctx context.Context, url string, opts *fetch.Options) (*fetch.Result, error)
	}
	if r, ok := f.(retrier); ok {
		return r.FetchWithRetry(ctx, rawURL, opts)
	}
	return f.Fetch(ctx, rawURL, opts)
}

// startMethod picks the first strategy: request flags first, then the
// per-host override lists.
func startMethod(rawURL string, opts *fetch.Options) string {
	if opts != nil && opts.Stealth {
		return fetch.MethodStealth
	}

	host := hostOf(rawURL)
	if matchesHost(host, stealthHosts) {
		return fetch.MethodStealth
	}
	if matchesHost(host, browserHosts) {
		return fetch.MethodBrowser
	}

	if opts != nil && needsBrowserFeatures(opts) {
		return fetch.MethodBrowser
	}
	return fetch.MethodSimple
}

// needsBrowserFeatures reports whether the request asks for something only
// a real page can do.
func needsBrowserFeatures(opts *fetch.Options) bool {
	return opts.ForceBrowser ||
		opts.Screenshot ||
		opts.KeepPageOpen ||
		opts.WaitForSelector != "" ||
		len(opts.Actions) > 0 ||
		len(opts.BlockResources) > 0
}

// isCacheable excludes requests whose responses are personalized or carry
// side effects.
func isCacheable(opts *fetch.Options) bool {
	if opts == nil {
		return true
	}
	return !opts.Screenshot &&
		!opts.KeepPageOpen &&
		len(opts.Actions) == 0 &&
		len(opts.Cookies) == 0
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// matchesHost reports whether host is one of the listed domains or a
// subdomain of one.
func matchesHost(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// isTLSFailure identifies the handshake failures that escalate straight to
// the browser instead of retrying.
func isTLSFailure(err error) bool {
	pe, ok := models.AsPeelError(err)
	return ok && pe.Kind == models.KindNetwork && strings.HasPrefix(pe.Message, "TLS/SSL")
}

// isCloudflareInterstitial spots the challenge responses worth one patient
// browser retry. Only network errors qualify; a blocked page mentioning a
// challenge escalates instead of retrying the same strategy.
func isCloudflareInterstitial(err error) bool {
	pe, ok := models.AsPeelError(err)
	if !ok || pe.Kind != models.KindNetwork {
		return false
	}
	msg := strings.ToLower(pe.Message)
	return strings.Contains(msg, "cloudflare") || strings.Contains(msg, "challenge")
}
