package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/webpeel/webpeel/dnscache"
	"github.com/webpeel/webpeel/models"
)

// Mirror endpoint defaults.
const (
	defaultMirrorHost = "webcache.googleusercontent.com"

	// mirrorMinBody: anything shorter is a stub or error page, treated as
	// a mirror miss.
	mirrorMinBody = 200
)

// searchResultMarkers indicate the mirror answered with a search results
// page instead of a cached copy.
var searchResultMarkers = []string{
	"did not match any documents",
	"search instead for",
	"results for",
	"- google search",
}

// cachedAtPattern extracts the mirror's snapshot timestamp from the notice
// banner ("... as it appeared on 12 Aug 2026 01:23:45 GMT.").
var cachedAtPattern = regexp.MustCompile(`(?i)as it appeared on ([^.<]+?)\s*[.<]`)

// wrapperDivIDs are known mirror banner containers removed during
// wrapper stripping.
var wrapperDivIDs = []string{
	"google-cache-hdr",
	"bN015htcoyT__google-cache-hdr",
}

// MirrorFetcher retrieves a third-party cached copy of a page. A mirror
// miss is not an error: Fetch returns (nil, nil) so the escalation engine
// can continue down the chain.
type MirrorFetcher struct {
	client *http.Client
	host   string
}

// NewMirrorFetcher creates a MirrorFetcher resolving through the shared
// DNS cache.
func NewMirrorFetcher(dns *dnscache.Cache) *MirrorFetcher {
	transport := &http.Transport{}
	if dns != nil {
		transport.DialContext = dns.DialContext
	}
	return &MirrorFetcher{
		client: &http.Client{Transport: transport, Timeout: 15 * time.Second},
		host:   defaultMirrorHost,
	}
}

func (f *MirrorFetcher) Name() string { return MethodMirror }

// Fetch asks the mirror for its cached copy of rawURL.
func (f *MirrorFetcher) Fetch(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()

	mirrorURL := "https://" + f.host + "/search?q=cache:" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mirrorURL, nil)
	if err != nil {
		return nil, models.NewPeelError(models.KindInvalidURL, "cannot build mirror request", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyErr(err, "mirror request failed")
	}
	defer resp.Body.Close()

	// Redirect away from the mirror host means no cached copy exists.
	if resp.Request.URL.Host != f.host {
		return nil, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, nil, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classifyErr(err, "read mirror body failed")
	}
	if len(body) < mirrorMinBody {
		return nil, nil
	}

	lower := strings.ToLower(string(body))
	if containsAny(lower, searchResultMarkers) {
		return nil, nil
	}

	cachedAt := extractCachedAt(body)
	stripped := stripMirrorWrapper(body)

	return &Result{
		FinalURL:    rawURL,
		StatusCode:  http.StatusOK,
		Body:        stripped,
		ContentType: "text/html",
		Headers:     resp.Header.Clone(),
		Duration:    time.Since(start),
		Method:      MethodMirror,
		Mirror: &models.MirrorInfo{
			Source:   f.host,
			CachedAt: cachedAt,
		},
	}, nil
}

// extractCachedAt pulls the snapshot timestamp out of the notice banner.
func extractCachedAt(body []byte) string {
	m := cachedAtPattern.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

// stripMirrorWrapper removes the mirror's banner chrome. It is best-effort:
// when no marker is found, the body passes through unchanged.
//
// Two passes: locate the first <hr> after the notice keyword and keep the
// suffix, then drop any known wrapper DIVs that survive.
func stripMirrorWrapper(body []byte) []byte {
	lower := strings.ToLower(string(body))

	if idx := strings.Index(lower, "appeared on"); idx >= 0 {
		if hr := strings.Index(lower[idx:], "<hr"); hr >= 0 {
			abs := idx + hr
			if end := strings.IndexByte(lower[abs:], '>'); end >= 0 {
				body = body[abs+end+1:]
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	removed := false
	for _, id := range wrapperDivIDs {
		sel := doc.Find("div#" + id)
		if sel.Length() > 0 {
			sel.Remove()
			removed = true
		}
	}
	if !removed {
		return body
	}

	html, err := doc.Html()
	if err != nil {
		return body
	}
	return []byte(html)
}
