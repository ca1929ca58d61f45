package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/webpeel/webpeel/engine"
	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/urlkey"
)

// Sitemap fetch limits.
const (
	sitemapMaxBody  = 5 * 1024 * 1024
	robotsMaxBody   = 1 * 1024 * 1024
	sitemapTimeout  = 10 * time.Second
	sitemapMaxDepth = 3 // sitemap index recursion cap
)

// sitemapIndex is a sitemap index XML file.
type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// urlset is a regular sitemap XML file.
type urlset struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// Map enumerates a site's URLs from three sources: /sitemap.xml, the
// Sitemap: directives in /robots.txt, and same-domain links on the
// homepage. Results are deduplicated by normalized URL and capped at
// req.Limit.
func (c *Crawler) Map(ctx context.Context, req *models.MapRequest) (*models.MapResponse, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Host == "" {
		return nil, models.NewPeelError(models.KindInvalidURL, "cannot parse site URL", err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5000
	}

	origin := parsed.Scheme + "://" + parsed.Host

	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		if len(urls) >= limit {
			return
		}
		key := urlkey.Normalize(u)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		urls = append(urls, u)
	}

	for _, u := range fetchSitemap(ctx, origin+"/sitemap.xml", 0) {
		add(u)
	}
	for _, sitemapURL := range fetchRobotsSitemaps(ctx, origin+"/robots.txt") {
		for _, u := range fetchSitemap(ctx, sitemapURL, 0) {
			add(u)
		}
	}
	for _, u := range c.homeLinks(ctx, req.URL, parsed) {
		add(u)
	}

	return &models.MapResponse{Success: true, URLs: urls, Total: len(urls)}, nil
}

// fetchSitemap fetches and parses one sitemap URL, recursing into sitemap
// index files.
func fetchSitemap(ctx context.Context, sitemapURL string, depth int) []string {
	if depth > sitemapMaxDepth {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sitemapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, sitemapMaxBody))
	if err != nil {
		return nil
	}

	var urls []string

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				urls = append(urls, fetchSitemap(ctx, strings.TrimSpace(s.Loc), depth+1)...)
			}
		}
		return urls
	}

	var us urlset
	if err := xml.Unmarshal(body, &us); err == nil {
		for _, u := range us.URLs {
			if u.Loc != "" {
				urls = append(urls, strings.TrimSpace(u.Loc))
			}
		}
	}
	return urls
}

// fetchRobotsSitemaps extracts Sitemap: directives from robots.txt.
func fetchRobotsSitemaps(ctx context.Context, robotsURL string) []string {
	ctx, cancel := context.WithTimeout(ctx, sitemapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBody))
	if err != nil {
		return nil
	}

	var sitemaps []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len("sitemap:") || !strings.EqualFold(line[:len("sitemap:")], "sitemap:") {
			continue
		}
		if u := strings.TrimSpace(line[len("sitemap:"):]); u != "" {
			sitemaps = append(sitemaps, u)
		}
	}
	return sitemaps
}

// homeLinks fetches the homepage through the engine and keeps the links
// that stay on the same base domain.
func (c *Crawler) homeLinks(ctx context.Context, homeURL string, base *url.URL) []string {
	res, _, err := c.engine.Peel(ctx, homeURL, &fetch.Options{})
	if err != nil {
		c.log.Debug("map: homepage fetch failed", "url", homeURL, "error", err)
		return nil
	}

	finalURL := res.FinalURL
	if finalURL == "" {
		finalURL = homeURL
	}
	var sameDomain []string
	for _, link := range engine.ExtractLinks(res.Body, finalURL) {
		if InScope(link, base, "subdomain") {
			sameDomain = append(sameDomain, link)
		}
	}
	return sameDomain
}
