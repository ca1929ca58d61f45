package fetch

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/webpeel/webpeel/models"
	"github.com/ysmood/gson"
)

// leaseIdleGrace is how long a keep-open page may sit idle before the pool
// reclaims it from a caller that never released.
const leaseIdleGrace = 2 * time.Minute

// deviceProfile is a viewport emulation preset.
type deviceProfile struct {
	width, height int
	mobile        bool
}

var deviceProfiles = map[string]deviceProfile{
	"desktop": {1920, 1080, false},
	"mobile":  {390, 844, true},
	"tablet":  {820, 1180, true},
}

// BrowserSettings configures the shared headless browser.
type BrowserSettings struct {
	Headless  bool
	NoSandbox bool
	Bin       string
	Proxy     string
	MaxPages  int
}

// BrowserFetcher drives a pooled headless browser. One instance owns the
// browser process and its page pool; it is safe for concurrent use.
type BrowserFetcher struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	settings    BrowserSettings
	activePages atomic.Int32

	leaseMu sync.Mutex
	leases  map[*rod.Page]*time.Timer
}

// NewBrowserFetcher launches the browser and initialises the page pool.
func NewBrowserFetcher(settings BrowserSettings) (*BrowserFetcher, error) {
	if settings.MaxPages <= 0 {
		settings.MaxPages = 10
	}

	l := launcher.New().
		Headless(settings.Headless).
		NoSandbox(settings.NoSandbox)

	if settings.Bin != "" {
		l = l.Bin(settings.Bin)
	}
	if settings.Proxy != "" {
		l = l.Proxy(settings.Proxy)
	}

	// Flags that mask the most common automation tells. The stealth JS
	// injection handles the rest per-request.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPeelError(models.KindInternal, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewPeelError(models.KindInternal, "failed to connect to browser", err)
	}

	return &BrowserFetcher{
		browser:  browser,
		pagePool: rod.NewPagePool(settings.MaxPages),
		settings: settings,
		leases:   make(map[*rod.Page]*time.Timer),
	}, nil
}

func (f *BrowserFetcher) Name() string { return MethodBrowser }

// Stats returns a snapshot of pool utilisation.
func (f *BrowserFetcher) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    f.settings.MaxPages,
		ActivePages: int(f.activePages.Load()),
	}
}

// ActiveLeases returns the number of keep-open pages awaiting release.
func (f *BrowserFetcher) ActiveLeases() int {
	f.leaseMu.Lock()
	defer f.leaseMu.Unlock()
	return len(f.leases)
}

// Close drains the page pool and kills the browser process.
func (f *BrowserFetcher) Close() {
	f.leaseMu.Lock()
	for page, timer := range f.leases {
		timer.Stop()
		_ = page.Close()
		delete(f.leases, page)
	}
	f.leaseMu.Unlock()

	f.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	f.browser.MustClose()
	slog.Info("browser fetcher shut down")
}

// Fetch navigates a pooled page and returns the rendered HTML.
//
// Order matters: stealth injection and the hijack router must be installed
// before Navigate, or they miss the navigation entirely.
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	start := time.Now()
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()

	f.activePages.Add(1)
	defer f.activePages.Add(-1)

	page, err := f.pagePool.Get(func() (*rod.Page, error) {
		return f.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewPeelError(models.KindInternal, "failed to acquire page from pool", err)
	}

	// Cleanup uses the original page reference (no request context) so it
	// succeeds even after the deadline fires. keepPageOpen defers the
	// return to a lease with an idle grace instead.
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("page cleanup failed", "error", navErr)
		}
		f.pagePool.Put(page)
	}
	if opts.KeepPageOpen {
		defer f.lease(page)
	} else {
		defer release()
	}

	if opts.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	profile, ok := deviceProfiles[opts.Device]
	if !ok {
		profile = deviceProfiles["desktop"]
	}
	_ = proto.EmulationSetDeviceMetricsOverride{
		Width:             profile.width,
		Height:            profile.height,
		DeviceScaleFactor: 1,
		Mobile:            profile.mobile,
	}.Call(page)

	f.applyHeaders(page, rawURL, opts)
	f.applyCookies(page, rawURL, opts)

	router := setupHijack(page, opts.BlockResources)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(rawURL); err != nil {
		return nil, classifyErr(err, "navigation failed")
	}

	if err := f.wait(p, opts); err != nil {
		return nil, err
	}

	if len(opts.Actions) > 0 {
		if err := executeActions(ctx, page, opts.Actions); err != nil {
			return nil, err
		}
	}

	statusCode := navigationStatus(p)

	html, err := p.HTML()
	if err != nil {
		return nil, classifyErr(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}

	if statusCode >= 400 {
		return nil, classifyStatus(statusCode, []byte(html), "text/html")
	}

	var screenshot []byte
	if opts.Screenshot {
		shot, shotErr := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if shotErr != nil {
			slog.Warn("screenshot capture failed", "url", rawURL, "error", shotErr)
		} else {
			screenshot = shot
		}
	}

	method := MethodBrowser
	if opts.Stealth {
		method = MethodStealth
	}

	return &Result{
		FinalURL:    finalURL,
		StatusCode:  statusCode,
		Body:        []byte(html),
		ContentType: "text/html",
		Duration:    time.Since(start),
		Method:      method,
		Screenshot:  screenshot,
	}, nil
}

// wait applies the post-navigation wait strategy: explicit selector, fixed
// delay, or DOM stability as the default.
func (f *BrowserFetcher) wait(p *rod.Page, opts *Options) error {
	if opts.WaitForSelector != "" {
		if err := p.WaitElementsMoreThan(opts.WaitForSelector, 0); err != nil {
			return classifyErr(err, "selector never appeared: "+opts.WaitForSelector)
		}
		return nil
	}
	if opts.WaitMs > 0 {
		select {
		case <-time.After(time.Duration(opts.WaitMs) * time.Millisecond):
		case <-p.GetContext().Done():
			return classifyErr(p.GetContext().Err(), "wait interrupted")
		}
		return nil
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// lease keeps a page out of the pool on the caller's behalf. If the caller
// never calls ReleasePage, the idle grace timer reclaims it.
func (f *BrowserFetcher) lease(page *rod.Page) {
	f.leaseMu.Lock()
	defer f.leaseMu.Unlock()

	f.leases[page] = time.AfterFunc(leaseIdleGrace, func() {
		slog.Warn("reclaiming leaked keep-open page")
		f.ReleasePage(page)
	})
}

// ReleasePage returns a keep-open page to the pool. Safe to call after the
// grace timer already reclaimed the page.
func (f *BrowserFetcher) ReleasePage(page *rod.Page) {
	f.leaseMu.Lock()
	timer, ok := f.leases[page]
	if ok {
		timer.Stop()
		delete(f.leases, page)
	}
	f.leaseMu.Unlock()

	if !ok {
		return
	}
	if err := page.Navigate("about:blank"); err != nil {
		slog.Warn("lease cleanup failed", "error", err)
	}
	f.pagePool.Put(page)
}

// applyHeaders sets extra headers, defaulting the Referer to a Google
// search for the target host, which calms some bot checks.
func (f *BrowserFetcher) applyHeaders(page *rod.Page, rawURL string, opts *Options) {
	extra := make(map[string]string, len(opts.Headers)+2)
	if _, has := opts.Headers["Referer"]; !has {
		if u, err := url.Parse(rawURL); err == nil {
			extra["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	if opts.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}.Call(page)
	}
	for k, v := range opts.Headers {
		extra[k] = v
	}
	if len(extra) == 0 {
		return
	}

	m := make(proto.NetworkHeaders, len(extra))
	for k, v := range extra {
		m[k] = gson.New(v)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: m}.Call(page)
}

// applyCookies installs request cookies, defaulting domain and path from
// the target URL.
func (f *BrowserFetcher) applyCookies(page *rod.Page, rawURL string, opts *Options) {
	for _, cookie := range opts.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, err := url.Parse(rawURL); err == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}
}

// navigationStatus reads the HTTP status of the last navigation from the
// performance timeline, which needs no CDP event listeners.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing errors (used for optional metadata).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// StealthFetcher is the browser strategy with anti-fingerprinting forced on.
type StealthFetcher struct {
	browser *BrowserFetcher
}

// NewStealthFetcher wraps a BrowserFetcher.
func NewStealthFetcher(browser *BrowserFetcher) *StealthFetcher {
	return &StealthFetcher{browser: browser}
}

func (f *StealthFetcher) Name() string { return MethodStealth }

func (f *StealthFetcher) Fetch(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.Stealth = true
	return f.browser.Fetch(ctx, rawURL, &o)
}
